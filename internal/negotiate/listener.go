package negotiate

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/neo6/tn3270gw/internal/gwlog"
)

// SessionHandler is invoked once per accepted connection, in its own
// goroutine, with a freshly constructed Session.
type SessionHandler func(ctx context.Context, s *Session)

// Listener accepts TN3270E connections and spawns one goroutine per
// connection, in the shape of the teacher's telnetserver.Server: a
// long-lived accept loop handing each net.Conn to a session goroutine,
// with no state shared between sessions.
type Listener struct {
	Addr    string
	Handler SessionHandler
	Log     *gwlog.Logger

	ln net.Listener
}

// ListenAndServe binds Addr and serves until ctx is cancelled or Close
// is called. It returns nil on a clean shutdown triggered by ctx.
func (l *Listener) ListenAndServe(ctx context.Context) error {
	if l.Handler == nil {
		return fmt.Errorf("negotiate: listener requires a Handler")
	}
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return fmt.Errorf("negotiate: listen on %s: %w", l.Addr, err)
	}
	l.ln = ln

	log := l.Log
	if log == nil {
		log = gwlog.New()
	}
	log.Infof("negotiate: listening on %s", l.Addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warnf("negotiate: accept error: %v", err)
			continue
		}
		go l.serve(ctx, conn, log)
	}
}

func (l *Listener) serve(ctx context.Context, conn net.Conn, log *gwlog.Logger) {
	remote := conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("negotiate: panic handling %s: %v", remote, r)
		}
		conn.Close()
	}()

	s := NewSession(conn, log)
	log.Infof("negotiate: accepted connection from %s, session %s", remote, s.SessionID)
	l.Handler(ctx, s)
	log.Infof("negotiate: session %s closed", s.SessionID)
}

// Close stops accepting new connections. In-flight sessions finish
// their current read/write and then observe the close on their next
// read, per spec.md §5's cancellation model.
func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}
