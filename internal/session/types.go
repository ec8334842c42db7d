package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Result codes stored on a finished session. 0/1 follow the legacy wire
// encoding; 2 marks an agreed draw.
const (
	ResultBlackWin int64 = 0
	ResultWhiteWin int64 = 1
	ResultDraw     int64 = 2
)

// Session is the single authoritative record of one game. Board and move
// payloads are opaque blobs owned by the client; the server never interprets
// them beyond lifting the replacement board out of a submitted move.
type Session struct {
	ID             string            `json:"id"`
	Host           string            `json:"host"`
	Guest          string            `json:"guest,omitempty"`
	HostPlaysWhite bool              `json:"host_plays_white"`
	Board          json.RawMessage   `json:"board"`
	Turn           int64             `json:"turn"`
	Moves          []json.RawMessage `json:"moves"`
	Tags           map[string]string `json:"tags"`
	Result         *int64            `json:"result"`
	DrawHost       bool              `json:"draw_host"`
	DrawGuest      bool              `json:"draw_guest"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// participant reports whether conn is the host or the established guest.
func (s *Session) participant(conn string) bool {
	if strings.TrimSpace(conn) == "" {
		return false
	}
	return conn == s.Host || (s.Guest != "" && conn == s.Guest)
}

// opponent returns the other participant's connection identity, which may be
// empty while the guest seat is open.
func (s *Session) opponent(conn string) string {
	if conn == s.Host {
		return s.Guest
	}
	return s.Host
}

// terminal reports whether the session accepts no further gameplay.
func (s *Session) terminal() bool { return s.Result != nil }

// setTag writes a tag, allocating the map on first use.
func (s *Session) setTag(key, value string) {
	if s.Tags == nil {
		s.Tags = map[string]string{}
	}
	s.Tags[key] = value
}

// Error kinds handled locally by the dispatch layer. None of these surface to
// the external caller; clients treat a missing notification as the failure
// signal.
var (
	ErrNotFound         = errf("session not found")
	ErrExists           = errf("session id already exists")
	ErrUnauthorized     = errf("caller is not a participant")
	ErrConflict         = errf("lost a concurrent update")
	ErrTerminal         = errf("session already has a result")
	ErrIDSpaceExhausted = errf("could not allocate a session id")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
