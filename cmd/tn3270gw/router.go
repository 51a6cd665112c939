package main

import (
	"context"
	"fmt"
	"time"

	"github.com/neo6/tn3270gw/internal/adminsock"
	"github.com/neo6/tn3270gw/internal/codec"
	"github.com/neo6/tn3270gw/internal/field"
	"github.com/neo6/tn3270gw/internal/gwlog"
	"github.com/neo6/tn3270gw/internal/markup"
	"github.com/neo6/tn3270gw/internal/negotiate"
	"github.com/neo6/tn3270gw/internal/screens"
	"github.com/neo6/tn3270gw/internal/tnstream"
)

// screenRouter renders named templates into 3270 streams and decides,
// from a field named "next_screen" on the submitted screen, which
// template to render next -- the screen selector spec.md §4.5
// describes as receiving (aid, modified_fields).
type screenRouter struct {
	screens *screens.Manager
	cp      codec.Codepage
	welcome string
	log     *gwlog.Logger
}

func newScreenRouter(mgr *screens.Manager, welcome string, logger *gwlog.Logger) *screenRouter {
	return &screenRouter{screens: mgr, cp: codec.CP037, welcome: welcome, log: logger}
}

// builtins returns the spec's parse-time variable table (timestamp,
// system_date, system_time, terminal_type, user_id, session_id) for s.
// There is no login phase, so user_id has no authenticated identity to
// report and is left empty.
func builtins(s *negotiate.Session) map[string]string {
	now := time.Now()
	return map[string]string{
		"timestamp":     now.Format("2006-01-02 15:04:05"),
		"system_date":   now.Format("2006-01-02"),
		"system_time":   now.Format("15:04:05"),
		"terminal_type": s.TerminalType,
		"user_id":       "",
		"session_id":    s.SessionID.String(),
	}
}

func (r *screenRouter) render(s *negotiate.Session, name string) (string, []byte, *field.FieldManager, error) {
	text, err := r.screens.Load(name)
	if err != nil {
		return "", nil, nil, fmt.Errorf("router: load %q: %w", name, err)
	}
	text = markup.Substitute(text, nil, builtins(s))
	elems, err := markup.Parse(text)
	if err != nil {
		return "", nil, nil, fmt.Errorf("router: parse %q: %w", name, err)
	}
	stream, fm, err := tnstream.Assemble(elems, r.cp)
	if err != nil {
		return "", nil, nil, fmt.Errorf("router: assemble %q: %w", name, err)
	}
	return name, stream, fm, nil
}

// Provide implements negotiate.ScreenProvider: the screen rendered the
// instant a session's screen-send gate opens.
func (r *screenRouter) Provide(s *negotiate.Session) (string, []byte, *field.FieldManager, error) {
	return r.render(s, r.welcome)
}

// HandleInput implements negotiate.InputHandler. Clear redisplays the
// current screen unmodified; any other AID looks at the submitted
// "next_screen" field (falling back to the current screen when absent
// or unrenderable) and sends that screen instead.
func (r *screenRouter) HandleInput(s *negotiate.Session, aid byte, modified map[string]string) {
	if aid == negotiate.AIDClear {
		name, stream, fm, err := r.render(s, s.CurrentScreenName())
		if err != nil {
			r.log.Errorf("router: redisplay %q: %v", s.CurrentScreenName(), err)
			return
		}
		s.SendScreen(name, stream, fm)
		return
	}

	next := modified["next_screen"]
	if next == "" {
		next = s.CurrentScreenName()
	}

	name, stream, fm, err := r.render(s, next)
	if err != nil {
		r.log.Warnf("router: %v, falling back to %q", err, s.CurrentScreenName())
		name, stream, fm, err = r.render(s, s.CurrentScreenName())
		if err != nil {
			r.log.Errorf("router: fallback render %q: %v", s.CurrentScreenName(), err)
			return
		}
	}
	s.SendScreen(name, stream, fm)
}

// sessionHandler wires a screenRouter and an adminsock.Registry together
// into a negotiate.SessionHandler: the session is registered as soon as
// it is accepted and unregistered when it closes, and its recorded
// terminal type and current screen are kept current as negotiation and
// screen selection progress, so the admin socket's Status command
// reflects the gateway's real session table.
func sessionHandler(router *screenRouter, registry *adminsock.Registry) negotiate.SessionHandler {
	return func(ctx context.Context, s *negotiate.Session) {
		id := s.SessionID.String()
		registry.Register(adminsock.SessionInfo{
			ID:         id,
			RemoteAddr: s.RemoteAddr(),
		})
		defer registry.Unregister(id)

		s.ScreenProvider = func(s *negotiate.Session) (string, []byte, *field.FieldManager, error) {
			name, stream, fm, err := router.Provide(s)
			if err == nil {
				registry.Update(id, func(info *adminsock.SessionInfo) {
					info.TerminalType = s.TerminalType
					info.Screen = name
				})
			}
			return name, stream, fm, err
		}
		s.OnInput = func(s *negotiate.Session, aid byte, modified map[string]string) {
			router.HandleInput(s, aid, modified)
			registry.Update(id, func(info *adminsock.SessionInfo) {
				info.TerminalType = s.TerminalType
				info.Screen = s.CurrentScreenName()
			})
		}

		s.Run(ctx)
	}
}
