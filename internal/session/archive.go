package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Archive persists finished games to Postgres. Sessions live in Redis only
// while playable; the archive is the durable record once a result is set.
type Archive struct {
	db *sql.DB
}

func NewArchive(databaseURL string) (*Archive, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// SaveFinal upserts a finished session row keyed on the session id.
func (a *Archive) SaveFinal(ctx context.Context, s *Session, method string) error {
	if a == nil || a.db == nil || s == nil || s.Result == nil {
		return nil
	}
	movesRaw, _ := json.Marshal(s.Moves)
	tagsRaw, _ := json.Marshal(s.Tags)
	endedAt := s.UpdatedAt
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}

	q := `INSERT INTO finished_games (
	    session_id, host, guest, host_plays_white,
	    result, result_tag, turn_count, moves, tags,
	    ended_method, created_at, ended_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
	  ) ON CONFLICT (session_id) DO UPDATE SET
	    host=EXCLUDED.host,
	    guest=EXCLUDED.guest,
	    host_plays_white=EXCLUDED.host_plays_white,
	    result=EXCLUDED.result,
	    result_tag=EXCLUDED.result_tag,
	    turn_count=EXCLUDED.turn_count,
	    moves=EXCLUDED.moves,
	    tags=EXCLUDED.tags,
	    ended_method=EXCLUDED.ended_method,
	    created_at=EXCLUDED.created_at,
	    ended_at=EXCLUDED.ended_at`

	_, err := a.db.ExecContext(ctx, q,
		s.ID, s.Host, s.Guest, s.HostPlaysWhite,
		*s.Result, s.Tags["Result"], s.Turn, string(movesRaw), string(tagsRaw),
		strings.TrimSpace(method), s.CreatedAt, endedAt,
	)
	return err
}
