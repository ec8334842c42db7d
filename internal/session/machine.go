// Package session implements the game session state machine: six transitions
// over a single keyed record, coordinated exclusively through the store's
// conditional writes. Each transition runs load → authorize → validate →
// mutate and returns the notices to deliver; delivery itself is the caller's
// job.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mirrorlake/chesswire/internal/fanout"
	"github.com/mirrorlake/chesswire/pkg/wiremsg"
)

// updateAttempts bounds retries of a conditional update lost to a benign
// concurrent writer (e.g. the opponent's draw flag landing first).
const updateAttempts = 3

type Machine struct {
	store   Store
	archive *Archive
	logger  *zap.Logger

	idLen   int
	idTries int
	gen     func(int) (string, error)
}

func NewMachine(store Store, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		store:   store,
		logger:  logger,
		idLen:   DefaultIDLength,
		idTries: 3,
		gen:     GenerateID,
	}
}

// SetIDPolicy overrides id length and the bounded regenerate-and-retry count.
func (m *Machine) SetIDPolicy(length, attempts int) {
	if length > 0 {
		m.idLen = length
	}
	if attempts > 0 {
		m.idTries = attempts
	}
}

// AttachArchive wires a database archive for persisting finished games.
func (m *Machine) AttachArchive(a *Archive) {
	if m != nil {
		m.archive = a
	}
}

// Create inserts a new session with the caller as host and the supplied
// initial game state. Id collisions trigger regeneration, bounded by the id
// policy; exhausting the retries surfaces ErrIDSpaceExhausted.
func (m *Machine) Create(ctx context.Context, caller string, hostPlaysWhite bool, game wiremsg.GameView) (*Session, []fanout.Notice, error) {
	if strings.TrimSpace(caller) == "" {
		return nil, nil, ErrUnauthorized
	}
	// entries with empty values are dropped at the store boundary
	tags := make(map[string]string, len(game.Tags))
	for k, v := range game.Tags {
		if v == "" {
			continue
		}
		tags[k] = v
	}
	moves := game.Moves
	if moves == nil {
		moves = []json.RawMessage{}
	}
	now := time.Now().UTC()
	sess := &Session{
		Host:           caller,
		HostPlaysWhite: hostPlaysWhite,
		Board:          game.Board,
		Turn:           game.Turn,
		Moves:          moves,
		Tags:           tags,
		Result:         game.Result,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i := 0; i < m.idTries; i++ {
		id, err := m.gen(m.idLen)
		if err != nil {
			return nil, nil, err
		}
		sess.ID = id
		err = m.store.Put(ctx, sess)
		if err == nil {
			m.logger.Info("session_create",
				zap.String("session_id", id),
				zap.String("host", caller),
				zap.Bool("host_plays_white", hostPlaysWhite),
			)
			notices := []fanout.Notice{{
				Target:  caller,
				Payload: wiremsg.Envelope{Action: wiremsg.ActionNewGame, ID: id},
			}}
			return sess, notices, nil
		}
		if !errors.Is(err, ErrExists) {
			return nil, nil, err
		}
		m.logger.Warn("session_id_collision", zap.String("session_id", id))
	}
	m.logger.Error("session_id_exhausted", zap.Int("attempts", m.idTries))
	return nil, nil, ErrIDSpaceExhausted
}

// Join sets the caller as guest. Joining again with the same identity is an
// idempotent no-op that re-sends both views; a different caller is rejected
// once the seat is taken. The seat check runs at write time, inside the
// store's conditional update, so two simultaneous joiners cannot both win.
func (m *Machine) Join(ctx context.Context, caller, id, name string) (*Session, []fanout.Notice, error) {
	if strings.TrimSpace(caller) == "" || strings.TrimSpace(id) == "" {
		return nil, nil, ErrUnauthorized
	}
	updated, err := m.updateRetry(ctx, id, func(cur *Session) error {
		if cur.Guest != "" && cur.Guest != caller {
			return ErrUnauthorized
		}
		cur.Guest = caller
		if name != "" {
			// guest plays the color the host does not
			seat := "White"
			if cur.HostPlaysWhite {
				seat = "Black"
			}
			cur.setTag(seat, name)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("session_join",
		zap.String("session_id", updated.ID),
		zap.String("guest", caller),
	)
	view := viewOf(updated)
	notices := []fanout.Notice{
		{Target: updated.Host, Payload: wiremsg.GameEvent{Action: wiremsg.ActionHostGame, ID: updated.ID, Game: view}},
		{Target: updated.Guest, Payload: wiremsg.GameEvent{Action: wiremsg.ActionJoinGame, ID: updated.ID, Game: view}},
	}
	return updated, notices, nil
}

// Move replaces the board wholesale, appends the raw move, and advances the
// turn. The write is conditional on the turn the caller's load observed: of
// two moves computed against the same prior state, exactly one lands and the
// other is rejected as a conflict, never silently overwritten or re-applied.
func (m *Machine) Move(ctx context.Context, caller, id string, move json.RawMessage) (*Session, []fanout.Notice, error) {
	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !cur.participant(caller) {
		return nil, nil, ErrUnauthorized
	}
	expected := cur.Turn
	var payload struct {
		Board json.RawMessage `json:"board"`
	}
	if err := json.Unmarshal(move, &payload); err != nil {
		return nil, nil, err
	}
	updated, err := m.store.Update(ctx, id, func(s *Session) error {
		if !s.participant(caller) {
			return ErrUnauthorized
		}
		if s.terminal() {
			return ErrTerminal
		}
		if s.Turn != expected {
			return ErrConflict
		}
		s.Board = payload.Board
		s.Moves = append(s.Moves, move)
		s.Turn++
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			m.logger.Warn("session_move_conflict",
				zap.String("session_id", id),
				zap.Int64("turn", expected),
			)
		}
		return nil, nil, err
	}
	m.logger.Info("session_move",
		zap.String("session_id", updated.ID),
		zap.String("caller", caller),
		zap.Int64("turn", updated.Turn),
	)
	view := viewOf(updated)
	notices := []fanout.Notice{
		{Target: updated.Host, Payload: wiremsg.GameEvent{Action: wiremsg.ActionMove, ID: updated.ID, Game: view}},
		{Target: updated.Guest, Payload: wiremsg.GameEvent{Action: wiremsg.ActionMove, ID: updated.ID, Game: view}},
	}
	return updated, notices, nil
}

// Draw records a draw vote. Accept is the same write as offer; agreement is
// detected when both flags are true after the write, which finishes the game.
// A decline clears only the caller's flag, and either side may offer again.
func (m *Machine) Draw(ctx context.Context, caller, id, mode string) (*Session, []fanout.Notice, error) {
	value := mode != wiremsg.DrawDecline
	updated, err := m.updateRetry(ctx, id, func(s *Session) error {
		if !s.participant(caller) {
			return ErrUnauthorized
		}
		if s.terminal() {
			return ErrTerminal
		}
		if caller == s.Host {
			s.DrawHost = value
		} else {
			s.DrawGuest = value
		}
		if s.DrawHost && s.DrawGuest {
			r := ResultDraw
			s.Result = &r
			s.setTag("Result", "1/2-1/2")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	env := func(action, target string) fanout.Notice {
		return fanout.Notice{Target: target, Payload: wiremsg.Envelope{Action: action, ID: updated.ID}}
	}
	var notices []fanout.Notice
	switch {
	case updated.DrawHost && updated.DrawGuest:
		notices = []fanout.Notice{
			env(wiremsg.ActionDraw, updated.Host),
			env(wiremsg.ActionDraw, updated.Guest),
		}
		_ = m.archiveIfFinal(ctx, updated, "agreement")
	case value:
		notices = []fanout.Notice{env(wiremsg.ActionOfferDraw, updated.opponent(caller))}
	default:
		notices = []fanout.Notice{env(wiremsg.ActionDeclineDraw, updated.opponent(caller))}
	}
	m.logger.Info("session_draw",
		zap.String("session_id", updated.ID),
		zap.String("caller", caller),
		zap.String("mode", mode),
		zap.Bool("agreed", updated.DrawHost && updated.DrawGuest),
	)
	return updated, notices, nil
}

// Resign awards the win to the color the caller does not play. The resigner
// plays white exactly when host-ness and host_plays_white agree; the single
// derivation below covers all four host-color × resigner combinations.
func (m *Machine) Resign(ctx context.Context, caller, id string) (*Session, []fanout.Notice, error) {
	updated, err := m.updateRetry(ctx, id, func(s *Session) error {
		if !s.participant(caller) {
			return ErrUnauthorized
		}
		if s.terminal() {
			return ErrTerminal
		}
		whiteWins := (caller == s.Host) != s.HostPlaysWhite
		r := ResultBlackWin
		tag := "0-1"
		if whiteWins {
			r = ResultWhiteWin
			tag = "1-0"
		}
		s.Result = &r
		s.setTag("Result", tag)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("session_resign",
		zap.String("session_id", updated.ID),
		zap.String("resigner", caller),
		zap.Int64("result", *updated.Result),
	)
	ev := wiremsg.ResignEvent{
		Action: wiremsg.ActionResign,
		ID:     updated.ID,
		Result: *updated.Result,
		Tag:    updated.Tags["Result"],
	}
	notices := []fanout.Notice{
		{Target: updated.Host, Payload: ev},
		{Target: updated.Guest, Payload: ev},
	}
	_ = m.archiveIfFinal(ctx, updated, "resignation")
	return updated, notices, nil
}

// Cancel deletes the session when the stored host still equals the caller at
// delete time. A cancel from anyone else, or one that loses the race, is a
// silent no-op and the session stays retrievable.
func (m *Machine) Cancel(ctx context.Context, caller, id string) ([]fanout.Notice, error) {
	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Host != caller {
		m.logger.Info("session_cancel_denied",
			zap.String("session_id", id),
			zap.String("caller", caller),
		)
		return nil, nil
	}
	deleted, err := m.store.Delete(ctx, id, func(s *Session) bool { return s.Host == caller })
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return nil, nil
		}
		return nil, err
	}
	if !deleted {
		return nil, nil
	}
	m.logger.Info("session_cancel", zap.String("session_id", id))
	ev := wiremsg.Envelope{Action: wiremsg.ActionCancelGame, ID: id}
	notices := []fanout.Notice{{Target: cur.Host, Payload: ev}}
	if cur.Guest != "" {
		notices = append(notices, fanout.Notice{Target: cur.Guest, Payload: ev})
	}
	return notices, nil
}

// updateRetry re-runs a conditional update that lost a benign race. The
// mutation closure is recomputed against fresh state each attempt, so a
// retried write is always valid for the state it lands on.
func (m *Machine) updateRetry(ctx context.Context, id string, apply func(*Session) error) (*Session, error) {
	var lastErr error
	for i := 0; i < updateAttempts; i++ {
		s, err := m.store.Update(ctx, id, apply)
		if !errors.Is(err, ErrConflict) {
			return s, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (m *Machine) archiveIfFinal(ctx context.Context, s *Session, method string) error {
	if m.archive == nil || s == nil || s.Result == nil {
		return nil
	}
	if err := m.archive.SaveFinal(ctx, s, method); err != nil {
		m.logger.Error("session_archive_error",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		return err
	}
	m.logger.Info("session_archive",
		zap.String("session_id", s.ID),
		zap.String("method", method),
	)
	return nil
}

func viewOf(s *Session) *wiremsg.GameView {
	moves := s.Moves
	if moves == nil {
		moves = []json.RawMessage{}
	}
	tags := s.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return &wiremsg.GameView{
		Board:  s.Board,
		Turn:   s.Turn,
		Moves:  moves,
		Tags:   tags,
		Result: s.Result,
	}
}
