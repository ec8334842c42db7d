// Package fanout delivers one notification payload independently to a set of
// connection identities, best-effort and at most once per target.
package fanout

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Notice is one payload addressed to one connection identity.
type Notice struct {
	Target  string
	Payload any
}

// Sender pushes a payload to a single connection. No ordering guarantee, no
// retry; an unreachable target is just an error.
type Sender interface {
	Send(ctx context.Context, connID string, payload []byte) error
}

type Fanout struct {
	sender Sender
	logger *zap.Logger
}

func New(sender Sender, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sender: sender, logger: logger}
}

// Deliver sends each notice independently. A target that cannot be reached is
// logged and skipped; the committed store record stays authoritative even
// when a notification is lost.
func (f *Fanout) Deliver(ctx context.Context, notices []Notice) {
	for _, n := range notices {
		if strings.TrimSpace(n.Target) == "" {
			continue
		}
		raw, err := json.Marshal(n.Payload)
		if err != nil {
			f.logger.Error("notify_encode_error", zap.Error(err))
			continue
		}
		if err := f.sender.Send(ctx, n.Target, raw); err != nil {
			f.logger.Warn("notify_unreachable",
				zap.String("conn_id", n.Target),
				zap.Error(err),
			)
		}
	}
}
