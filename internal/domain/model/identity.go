package model

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// UserID is an external user identifier. Numeric identifiers are kept
// in their canonical decimal text so 5, 5.0 and "5" denote the same user.
type UserID string

// RoomKey is the canonical, order-independent key of a two-party room.
type RoomKey string

func (k RoomKey) String() string { return string(k) }

// ParseUserID normalises a loosely typed JSON value into a UserID.
func ParseUserID(v any) (UserID, bool) {
	s, ok := scalarString(v)
	if !ok {
		return "", false
	}
	return UserID(s), true
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(t)
		// [CLIENT_QUIRK] JS clients stringify absent values.
		if s == "" || s == "null" || s == "undefined" {
			return "", false
		}
		return s, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
		// [PRECISION] Integers beyond int64 keep their exact digits.
		if i, ok := new(big.Int).SetString(t.String(), 10); ok {
			return i.String(), true
		}
		if f, err := t.Float64(); err == nil {
			return formatFloat(f)
		}
		return "", false
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	default:
		return "", false
	}
}

func formatFloat(f float64) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10), true
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}
