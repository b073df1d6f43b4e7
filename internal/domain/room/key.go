package room

import (
	"math/big"
	"strings"

	"github.com/webitel/im-signaling-service/internal/domain/model"
)

// Separator joins the two participant ids of a room key.
const Separator = "-"

// An id that contains Separator or the escape byte is escaped before joining,
// so the only bare Separator in a key is the one between the participants.
// Plain ids ("5", "alice") pass through untouched.
var escaper = strings.NewReplacer(`\`, `\\`, Separator, `\`+Separator)

// Key derives the canonical room key of a two-party conversation:
// min(a,b) + Separator + max(a,b). Key(a,b) == Key(b,a) for all a, b.
// Returns false when either id is missing; the caller must not form a room.
func Key(a, b model.UserID) (model.RoomKey, bool) {
	if a == "" || b == "" {
		return "", false
	}
	if less(b, a) {
		a, b = b, a
	}
	return model.RoomKey(escape(a) + Separator + escape(b)), true
}

// less orders numerically when both ids are integers ("5" < "10"),
// lexicographically otherwise.
func less(a, b model.UserID) bool {
	x, okA := new(big.Int).SetString(string(a), 10)
	y, okB := new(big.Int).SetString(string(b), 10)
	if okA && okB {
		if c := x.Cmp(y); c != 0 {
			return c < 0
		}
	}
	return a < b
}

func escape(id model.UserID) string {
	if !strings.ContainsAny(string(id), `\`+Separator) {
		return string(id)
	}
	return escaper.Replace(string(id))
}
