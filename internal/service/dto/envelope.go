package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Envelope is the transport-neutral shape of an inbound event, shared by the
// websocket, the HTTP bridge and the bus consumer.
type Envelope struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
}

// DecodeEnvelope reads one envelope. Numbers are kept as json.Number so large
// numeric user ids survive without float rounding.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	env := new(Envelope)
	if err := dec.Decode(env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Data == nil {
		env.Data = map[string]any{}
	}
	return env, nil
}

// UnmarshalEnvelope is DecodeEnvelope for an in-memory frame.
func UnmarshalEnvelope(b []byte) (*Envelope, error) {
	return DecodeEnvelope(bytes.NewReader(b))
}
