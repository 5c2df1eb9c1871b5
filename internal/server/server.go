// Package server implements the TCP connection-handling loop: one
// worker goroutine per accepted client connection, each reading,
// dispatching, and writing one request/response pair at a time before
// touching the next frame. Grounded on the teacher's Start/Accept/
// handleConnection shape in internal/server/server.go, trimmed of its
// TLS, ACL, pub/sub, rate-limit and slow-log machinery — none of which
// spec.md's command table exercises.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/lumendb/lumen/internal/dispatch"
	"github.com/lumendb/lumen/internal/protocol"
)

// Server accepts connections on a TCP listener bound to localhost and
// runs each through the command dispatcher.
type Server struct {
	addr       string
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// New builds a Server listening on addr (host:port, bound to localhost
// per spec.md §6) and routing every request through d.
func New(addr string, d *dispatch.Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, dispatcher: d, logger: logger}
}

// Start binds the listener and accepts connections until ctx is
// cancelled or Close is called. It blocks until the listener stops.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("lumen server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			s.logger.Error("accept failed", "err", err)
			continue
		}

		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(5 * time.Minute)
		}

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			s.handleConnection(c)
		}(conn)
	}
}

// Addr returns the bound address, or nil if Start has not run yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting new connections and waits for every connection
// worker to return. Open client connections are not closed by Close: a
// worker returns only when its client disconnects, a read or write
// fails, or the client sends QUIT/EXIT.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

// handleConnection reads, dispatches, and writes one request/response
// pair at a time until the connection errors, the client disconnects,
// or a command asks to close it (QUIT/EXIT).
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	w := protocol.NewWriter(conn)
	var buf protocol.Buffer
	readBuf := make([]byte, 4096)

	for {
		frame, ok, err := buf.TryDecode()
		if err != nil {
			w.WriteError("ERR Protocol error: " + err.Error())
			return
		}
		if !ok {
			n, err := conn.Read(readBuf)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					s.logger.Debug("connection read error", "err", err)
				}
				return
			}
			buf.Feed(readBuf[:n])
			continue
		}

		quit, err := s.dispatcher.Handle(frame, w)
		if err != nil {
			s.logger.Debug("connection write error", "err", err)
			return
		}
		if quit {
			return
		}
	}
}
