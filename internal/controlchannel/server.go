// SPDX-License-Identifier:Apache-2.0

package controlchannel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strconv"
	"sync"

	"github.com/openperouter/bgpspeaker/internal/speaker"
	"github.com/openperouter/bgpspeaker/internal/status"
)

const (
	DefaultBindIP   = "0.0.0.0"
	DefaultBindPort = 50002
)

type Settings struct {
	BindIP   string
	BindPort int
}

// EngineProvider returns the running engine, nil when the speaker was
// not started.
type EngineProvider func() speaker.Engine

// Server is the JSON-RPC control channel of the speaker.
type Server struct {
	engine EngineProvider
	status status.StatusReader
	logger *slog.Logger
}

func NewServer(engine EngineProvider, statusReader status.StatusReader, logger *slog.Logger) *Server {
	return &Server{
		engine: engine,
		status: statusReader,
		logger: logger,
	}
}

// Serve listens on the bind address and serves until ctx is done.
func (s *Server) Serve(ctx context.Context, settings Settings) error {
	addr := net.JoinHostPort(settings.BindIP, strconv.Itoa(settings.BindPort))
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, l)
}

// ServeListener serves on an existing listener until ctx is done. The
// listener and every open connection are closed on return.
func (s *Server) ServeListener(ctx context.Context, l net.Listener) error {
	rpcServer := rpc.NewServer()
	service := &SpeakerService{ctx: ctx, engine: s.engine, status: s.status}
	if err := rpcServer.RegisterName("Speaker", service); err != nil {
		_ = l.Close()
		return fmt.Errorf("failed to register speaker service: %w", err)
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns = map[net.Conn]struct{}{}
	)
	defer func() {
		mu.Lock()
		for c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
		wg.Wait()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = l.Close()
	})
	defer stop()

	s.logger.Info("control channel listening", "address", l.Addr().String())
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("control channel stopped", "address", l.Addr().String())
				return nil
			}
			_ = l.Close()
			return fmt.Errorf("control channel accept failed: %w", err)
		}

		mu.Lock()
		conns[conn] = struct{}{}
		mu.Unlock()

		s.logger.Debug("control channel connection", "remote", conn.RemoteAddr().String())
		wg.Add(1)
		go func() {
			defer wg.Done()
			rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			mu.Lock()
			delete(conns, conn)
			mu.Unlock()
		}()
	}
}
