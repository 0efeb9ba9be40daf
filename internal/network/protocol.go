package network

import "github.com/vmihailenco/msgpack/v5"

// Encode wraps a payload in an envelope and marshals it for the wire.
func Encode(msgType string, payload any) ([]byte, error) {
	frame := struct {
		T string `msgpack:"t"`
		P any    `msgpack:"p"`
	}{T: msgType, P: payload}
	return msgpack.Marshal(frame)
}

// DecodeEnvelope unmarshals the outer frame, leaving the payload raw.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	err := msgpack.Unmarshal(data, &env)
	return env, err
}

// DecodePayload unmarshals an envelope's payload into the requested
// type.
func DecodePayload[T any](env Envelope) (T, error) {
	var p T
	err := msgpack.Unmarshal(env.P, &p)
	return p, err
}
