// Package codec frames normalized messages as JSON envelopes. The same
// framing is spoken by remote gateway adapters and written by the market
// data recorder, so a recorded stream replays through the same decoder.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"main/internal/message"
)

var (
	ErrUnknownKind        = errors.New("unknown envelope kind")
	ErrUnsupportedMessage = errors.New("message kind not encodable")
)

// Envelope frames one message for the wire.
type Envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Encode serializes a message into envelope bytes.
func Encode(m message.Message) ([]byte, error) {
	env, err := EncodeEnvelope(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses envelope bytes back into a message.
func Decode(data []byte) (message.Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return DecodeEnvelope(env)
}

// EncodeEnvelope converts a message into its wire envelope.
func EncodeEnvelope(m message.Message) (Envelope, error) {
	kind, dto, err := toDTO(m)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: kind, Data: data}, nil
}

// DecodeEnvelope converts a wire envelope back into a message.
func DecodeEnvelope(env Envelope) (message.Message, error) {
	build, ok := decoders[env.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Kind)
	}
	return build(env.Data)
}
