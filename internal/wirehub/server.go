package wirehub

import (
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Server upgrades inbound requests to websockets and feeds their frames to
// the dispatcher, one transition at a time per connection.
type Server struct {
	hub    *Hub
	disp   *Dispatcher
	logger *zap.Logger
}

func NewServer(hub *Hub, disp *Dispatcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{hub: hub, disp: disp, logger: logger}
}

func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
			OriginPatterns:  []string{"*"},
		})
		if err != nil {
			s.logger.Warn("ws_accept_error", zap.Error(err))
			return
		}
		connID := s.hub.Register(conn)
		s.logger.Info("ws_connect", zap.String("conn_id", connID))
		defer func() {
			s.hub.Unregister(connID)
			_ = conn.Close(websocket.StatusNormalClosure, "closing")
			s.logger.Info("ws_disconnect", zap.String("conn_id", connID))
		}()

		ctx := r.Context()
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				continue
			}
			s.disp.Dispatch(ctx, connID, data)
		}
	})
}
