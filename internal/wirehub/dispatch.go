package wirehub

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/mirrorlake/chesswire/internal/fanout"
	"github.com/mirrorlake/chesswire/internal/session"
	"github.com/mirrorlake/chesswire/pkg/wiremsg"
)

// Dispatcher maps one inbound frame to one state-machine transition and
// hands the resulting notices to the fan-out. Every error kind is absorbed
// here: the transport never reports a distinguishable failure back to the
// caller, who learns of problems only through the missing notification.
type Dispatcher struct {
	machine *session.Machine
	fan     *fanout.Fanout
	logger  *zap.Logger
}

func NewDispatcher(machine *session.Machine, fan *fanout.Fanout, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{machine: machine, fan: fan, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, connID string, frame []byte) {
	var env wiremsg.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		d.logger.Warn("dispatch_bad_frame", zap.String("conn_id", connID), zap.Error(err))
		return
	}

	var (
		notices []fanout.Notice
		err     error
	)
	switch env.Action {
	case wiremsg.ActionNewGame:
		var req wiremsg.CreateRequest
		if err = json.Unmarshal(frame, &req); err == nil {
			_, notices, err = d.machine.Create(ctx, connID, req.HostPlaysWhite, req.Game)
		}
	case wiremsg.ActionJoin:
		var req wiremsg.JoinRequest
		if err = json.Unmarshal(frame, &req); err == nil {
			_, notices, err = d.machine.Join(ctx, connID, req.ID, req.Name)
		}
	case wiremsg.ActionMove:
		var req wiremsg.MoveRequest
		if err = json.Unmarshal(frame, &req); err == nil {
			_, notices, err = d.machine.Move(ctx, connID, req.ID, req.Move)
		}
	case wiremsg.ActionDraw:
		var req wiremsg.DrawRequest
		if err = json.Unmarshal(frame, &req); err == nil {
			_, notices, err = d.machine.Draw(ctx, connID, req.ID, req.Mode)
		}
	case wiremsg.ActionResign:
		_, notices, err = d.machine.Resign(ctx, connID, env.ID)
	case wiremsg.ActionCancelGame:
		notices, err = d.machine.Cancel(ctx, connID, env.ID)
	default:
		d.logger.Warn("dispatch_unknown_action",
			zap.String("conn_id", connID),
			zap.String("action", env.Action),
		)
		return
	}

	if err != nil {
		d.logger.Warn("dispatch_rejected",
			zap.String("action", env.Action),
			zap.String("conn_id", connID),
			zap.String("session_id", env.ID),
			zap.Error(err),
		)
		return
	}
	d.fan.Deliver(ctx, notices)
}
