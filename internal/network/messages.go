// Package network defines the wire protocol: a msgpack envelope
// tagging one of the recognized message kinds with its payload.
package network

import "github.com/vmihailenco/msgpack/v5"

// Client -> server message kinds. Unknown kinds are dropped silently.
const (
	MsgSetMeta    = "setMeta"
	MsgJoinQueue  = "joinQueue"
	MsgLeaveQueue = "leaveQueue"
	MsgStartMatch = "startMatch"
	MsgInput      = "input"
	MsgPing       = "ping"
)

// Server -> client message kinds.
const (
	MsgWelcome      = "welcome"
	MsgMetaSet      = "metaSet"
	MsgQueued       = "queued"
	MsgLeftQueue    = "leftQueue"
	MsgMatchStarted = "matchStarted"
	MsgState        = "state"
	MsgPong         = "pong"
	MsgError        = "error"
)

// Envelope is the wire frame for every message: a kind tag and an
// opaque payload decoded per kind.
type Envelope struct {
	T string             `msgpack:"t"`
	P msgpack.RawMessage `msgpack:"p"`
}

// MetaPayload carries display metadata for a session.
type MetaPayload struct {
	Name  string `msgpack:"name"`
	Color string `msgpack:"color"`
}

// SetMetaPayload updates the sender's display metadata.
type SetMetaPayload struct {
	Meta MetaPayload `msgpack:"meta"`
}

// StartMatchPayload requests a match formed from the waiting queue.
type StartMatchPayload struct {
	Count int `msgpack:"count"`
}

// InputPayload carries one control input for a live match.
type InputPayload struct {
	MatchID  string  `msgpack:"matchId"`
	Throttle float64 `msgpack:"throttle"`
	Brake    float64 `msgpack:"brake"`
	Steer    float64 `msgpack:"steer"`
	Seq      uint32  `msgpack:"seq"`
}

// WelcomePayload greets a new connection with its session id.
type WelcomePayload struct {
	SID       string `msgpack:"sid"`
	QueueSize int    `msgpack:"queueSize"`
}

// MetaSetPayload acknowledges a metadata update.
type MetaSetPayload struct {
	OK bool `msgpack:"ok"`
}

// QueuedPayload reports the sender's position in the waiting queue.
type QueuedPayload struct {
	Pos int `msgpack:"pos"`
}

// MatchStartedPayload notifies a participant their match is live.
type MatchStartedPayload struct {
	MatchID string `msgpack:"matchId"`
}

// PlayerStateData is the broadcast form of one player's state.
type PlayerStateData struct {
	ID              string  `msgpack:"id"`
	Name            string  `msgpack:"name"`
	Color           string  `msgpack:"color"`
	X               float64 `msgpack:"x"`
	Y               float64 `msgpack:"y"`
	Angle           float64 `msgpack:"angle"`
	Speed           float64 `msgpack:"speed"`
	Lap             int     `msgpack:"lap"`
	CheckpointIndex int     `msgpack:"checkpointIndex"`
}

// StatePayload is the periodic full-state broadcast for one match.
type StatePayload struct {
	MatchID string                     `msgpack:"matchId"`
	Players map[string]PlayerStateData `msgpack:"players"`
	T       int64                      `msgpack:"t"` // server unix milliseconds
}

// PongPayload answers a ping.
type PongPayload struct {
	TS int64 `msgpack:"ts"`
}

// ErrorPayload reports an explicit failure to the requester.
type ErrorPayload struct {
	Msg string `msgpack:"msg"`
}
