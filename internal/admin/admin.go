// Package admin exposes health and status endpoints on a side port, away
// from game traffic.
package admin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ConnCounter reports the number of live game connections.
type ConnCounter interface {
	Count() int
}

type Server struct {
	rdb     *redis.Client
	conns   ConnCounter
	logger  *zap.Logger
	started time.Time
	srv     *fasthttp.Server
}

func NewServer(rdb *redis.Client, conns ConnCounter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{rdb: rdb, conns: conns, logger: logger, started: time.Now()}
}

func (s *Server) ListenAndServe(addr string) error {
	s.srv = &fasthttp.Server{Handler: s.handle, Name: "chesswire-admin"}
	s.logger.Info("admin_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown()
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.rdb.Ping(pctx).Err(); err != nil {
			s.logger.Warn("admin_health_redis", zap.Error(err))
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetBodyString("redis unavailable")
			return
		}
		ctx.SetBodyString("ok")
	case "/statusz":
		body, _ := json.Marshal(map[string]any{
			"uptime_sec":  int64(time.Since(s.started).Seconds()),
			"connections": s.conns.Count(),
		})
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
