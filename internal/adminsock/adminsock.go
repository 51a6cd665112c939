// Package adminsock implements the per-proxy admin control socket: a
// line-delimited JSON TCP server bound to 127.0.0.1 that reports
// status and dispatches Shutdown/ReloadConfig/SetLogLevel commands to
// the rest of the gateway process.
package adminsock

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/neo6/tn3270gw/internal/gwlog"
)

// ProxyInfo describes the running proxy instance and is echoed in the
// admin socket's welcome banner.
type ProxyInfo struct {
	ProtocolName string `json:"protocolName"`
	ListenAddr   string `json:"listenAddr"`
	AdminAddr    string `json:"adminAddr"`
}

type welcomeMsg struct {
	Message string    `json:"message"`
	Version string    `json:"version"`
	Proxy   ProxyInfo `json:"proxy"`
}

// CommandKind enumerates the admin socket's command vocabulary.
type CommandKind int

const (
	CmdShutdown CommandKind = iota
	CmdReloadConfig
	CmdSetLogLevel
)

// Command is one element carried on the single-writer channel between
// the admin connection handler and the listener supervisor.
type Command struct {
	Kind  CommandKind
	Level gwlog.Level // meaningful only when Kind == CmdSetLogLevel
}

type wireCommand struct {
	Command string `json:"command"`
	Level   string `json:"level,omitempty"`
}

type wireResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProtocolLister answers GetProtocols without adminsock needing to
// import the protocol registry directly, mirroring internal/negotiate's
// ScreenProvider injection pattern.
type ProtocolLister func() []string

// Server is the admin control socket. One Server exists per gateway
// process.
type Server struct {
	Addr      string
	Proxy     ProxyInfo
	Registry  *Registry
	Commands  chan<- Command
	Protocols ProtocolLister

	// TransactionCount, when set, reports the size of the loaded
	// transaction map in the Status response.
	TransactionCount func() int

	log *gwlog.Logger
	ln  net.Listener
}

// NewServer constructs a Server. logger may be nil.
func NewServer(addr string, proxy ProxyInfo, registry *Registry, commands chan<- Command, logger *gwlog.Logger) *Server {
	if logger == nil {
		logger = gwlog.New()
	}
	return &Server{
		Addr:     addr,
		Proxy:    proxy,
		Registry: registry,
		Commands: commands,
		log:      logger,
	}
}

// ListenAndServe binds Addr and serves admin connections until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("adminsock: listen on %s: %w", s.Addr, err)
	}
	s.ln = ln
	s.log.Infof("adminsock: listening on %s", s.Addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warnf("adminsock: accept error: %v", err)
			continue
		}
		go s.serve(conn)
	}
}

// Close stops accepting new admin connections.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// serve handles one admin connection: write the welcome banner, then
// read and answer commands one line at a time. Reading sequentially
// off a single connection already guarantees at most one command is
// processed at a time per connection.
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	enc := json.NewEncoder(conn)
	if err := enc.Encode(welcomeMsg{
		Message: "NEO6 Proxy Admin Control",
		Version: "0.1.0",
		Proxy:   s.Proxy,
	}); err != nil {
		s.log.Warnf("adminsock: write welcome: %v", err)
		return
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.dispatch(line)
		if err := enc.Encode(resp); err != nil {
			s.log.Warnf("adminsock: write response: %v", err)
			return
		}
		if resp.Status == "Success" && wasShutdown(line) {
			return
		}
	}
}

func wasShutdown(line []byte) bool {
	var cmd wireCommand
	if err := json.Unmarshal(line, &cmd); err != nil {
		return false
	}
	return cmd.Command == "Shutdown"
}

func (s *Server) dispatch(line []byte) wireResponse {
	var cmd wireCommand
	if err := json.Unmarshal(line, &cmd); err != nil {
		return errorResponse(fmt.Sprintf("malformed command: %v", err))
	}

	switch cmd.Command {
	case "Status":
		return s.handleStatus()
	case "Shutdown":
		return s.handleSimple(Command{Kind: CmdShutdown})
	case "ReloadConfig":
		return s.handleSimple(Command{Kind: CmdReloadConfig})
	case "SetLogLevel":
		level, ok := gwlog.ParseLevel(cmd.Level)
		if !ok {
			return errorResponse(fmt.Sprintf("unrecognized level %q", cmd.Level))
		}
		return s.handleSimple(Command{Kind: CmdSetLogLevel, Level: level})
	case "GetProtocols":
		return s.handleGetProtocols()
	default:
		return errorResponse(fmt.Sprintf("unrecognized command %q", cmd.Command))
	}
}

func (s *Server) handleStatus() wireResponse {
	data := map[string]any{
		"proxy":        s.Proxy,
		"sessionCount": s.Registry.Count(),
		"sessions":     s.Registry.List(),
	}
	if s.TransactionCount != nil {
		data["transactionCount"] = s.TransactionCount()
	}
	return wireResponse{Status: "Success", Data: data}
}

func (s *Server) handleGetProtocols() wireResponse {
	var protocols []string
	if s.Protocols != nil {
		protocols = s.Protocols()
	}
	return wireResponse{Status: "Success", Data: map[string]any{"protocols": protocols}}
}

// handleSimple hands cmd to the listener supervisor. The send blocks
// until the supervisor's receive loop accepts it: there is exactly one
// consumer and it is always either idle or mid-dispatch, never gone,
// so a blocking send cannot stall indefinitely in practice.
func (s *Server) handleSimple(cmd Command) wireResponse {
	s.Commands <- cmd
	return wireResponse{Status: "Success"}
}

func errorResponse(msg string) wireResponse {
	return wireResponse{Status: "Error", Message: msg}
}
