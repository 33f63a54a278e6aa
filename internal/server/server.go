// Package server exposes a resolve cache over a line based TCP protocol.
package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/facebookgo/stackerr"
	"github.com/google/uuid"

	"github.com/kushalsai-01/resolvecache/internal/cache"
)

const DefaultAddr = ":5353"

// Cache is the part of *cache.Cache the protocol uses.
type Cache interface {
	Resolve(ctx context.Context, key string, r cache.Resolver) (string, cache.Outcome, error)
	Remove(key string) error
	Size() int
	Stats() cache.Report
}

type Server struct {
	Addr string
	ConnMeta
	Log *slog.Logger

	mu       sync.Mutex
	conns    map[*conn]struct{}
	shutdown bool
	wg       sync.WaitGroup
}

// ConnMeta is data shared between connections.
type ConnMeta struct {
	Cache    Cache
	Resolver cache.Resolver
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return stackerr.Wrap(err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections until ctx is done or the listener fails. On
// return the listener and every connection are closed and their goroutines
// have exited.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.init()
	stop := context.AfterFunc(ctx, func() {
		l.Close()
		s.closeConns()
	})
	defer func() {
		stop()
		s.closeConns()
		s.wg.Wait()
	}()

	s.Log.Info("serving", "addr", l.Addr().String())
	var tempDelay time.Duration // How long to sleep on accept failure.
	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); !(ok && ne.Temporary()) {
				return stackerr.Wrap(err)
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := 1 * time.Second; tempDelay > max {
				tempDelay = max
			}
			s.Log.Error("accept error", "error", err, "retry_in", tempDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(tempDelay):
			}
			continue
		}
		tempDelay = 0
		c := s.newConn(ctx, nc)
		if !s.track(c) {
			nc.Close()
			continue
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			c.serve()
		}()
	}
}

func (s *Server) newConn(ctx context.Context, nc net.Conn) *conn {
	l := s.Log.With("conn", uuid.NewString(), "remote", nc.RemoteAddr().String())
	return newConn(ctx, l, &s.ConnMeta, nc)
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	for c := range s.conns {
		c.closer.Close()
	}
}

func (s *Server) init() {
	if s.Log == nil {
		s.Log = slog.Default()
	}
	s.mu.Lock()
	s.conns = make(map[*conn]struct{})
	s.shutdown = false
	s.mu.Unlock()
	if s.Cache == nil || s.Resolver == nil {
		s.Log.Error("server needs a cache and a resolver")
		panic("server: nil Cache or Resolver")
	}
}
