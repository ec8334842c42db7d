// Package wiremsg defines the JSON wire contract between clients and the
// session backend. Board, move, and tag payloads are opaque to the server and
// carried as raw JSON so their exact text (including numeric literals)
// survives the round trip through the store.
package wiremsg

import "encoding/json"

// Actions carried in the envelope of inbound requests and outbound events.
const (
	ActionNewGame     = "newgame"
	ActionJoin        = "join"
	ActionHostGame    = "hostgame"
	ActionJoinGame    = "joingame"
	ActionMove        = "move"
	ActionDraw        = "draw"
	ActionOfferDraw   = "offerdraw"
	ActionDeclineDraw = "declinedraw"
	ActionResign      = "resign"
	ActionCancelGame  = "cancelgame"
)

// Draw request modes.
const (
	DrawOffer   = "offer"
	DrawAccept  = "accept"
	DrawDecline = "decline"
)

// Envelope is the minimal frame shared by every message.
type Envelope struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// GameView is the full-game-state payload embedded in hostgame, joingame and
// move events. Turn is always an integer on the wire.
type GameView struct {
	Board  json.RawMessage   `json:"board"`
	Turn   int64             `json:"turn"`
	Moves  []json.RawMessage `json:"moves"`
	Tags   map[string]string `json:"tags"`
	Result *int64            `json:"result"`
}

// CreateRequest opens a new session with the caller as host.
type CreateRequest struct {
	Action         string   `json:"action"`
	HostPlaysWhite bool     `json:"host_plays_white"`
	Game           GameView `json:"game"`
}

// JoinRequest claims the guest seat. Name, when present, becomes the
// caller's display name tag.
type JoinRequest struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
}

// MoveRequest submits one move. The move blob carries the replacement board
// under its "board" key; the rest of the blob is passed through unchanged.
type MoveRequest struct {
	Action string          `json:"action"`
	ID     string          `json:"id"`
	Move   json.RawMessage `json:"move"`
}

// DrawRequest offers, accepts, or declines a draw.
type DrawRequest struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Mode   string `json:"mode"`
}

// GameEvent is an outbound event carrying the full game state.
type GameEvent struct {
	Action string    `json:"action"`
	ID     string    `json:"id"`
	Game   *GameView `json:"game"`
}

// ResignEvent announces the end of a game by resignation.
type ResignEvent struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Result int64  `json:"result"`
	Tag    string `json:"tag"`
}
