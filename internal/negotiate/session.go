package negotiate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neo6/tn3270gw/internal/codec"
	"github.com/neo6/tn3270gw/internal/field"
	"github.com/neo6/tn3270gw/internal/gwlog"
)

// AID bytes recognized in inbound 3270 data, per spec.md §4.5.
const (
	AIDEnter byte = 0x7D
	AIDClear byte = 0x6D
	AIDPA1   byte = 0x6C
	AIDPA2   byte = 0x6E
	AIDPA3   byte = 0x6B
	AIDPF1   byte = 0xF1
	AIDPF12  byte = 0xFC
)

// PFNumber reports which PFn key aid identifies, if any.
func PFNumber(aid byte) (n int, ok bool) {
	if aid >= AIDPF1 && aid <= AIDPF12 {
		return int(aid-AIDPF1) + 1, true
	}
	return 0, false
}

type negotiationFlags struct {
	binary       bool
	terminalType bool
	eor          bool
	tn3270e      bool
}

// ScreenProvider renders the initial screen for a session once the
// screen-send gate opens. It returns the screen's name, an unframed
// 3270 data stream (as produced by tnstream.Assemble), and the
// FieldManager describing the fields it placed, which the session
// keeps for inbound routing.
type ScreenProvider func(s *Session) (name string, stream []byte, fm *field.FieldManager, err error)

// InputHandler receives a decoded inbound transmission: the AID byte
// and the values of whatever fields were modified.
type InputHandler func(s *Session, aid byte, modified map[string]string)

// Session is the per-connection Telnet/TN3270E negotiation state
// machine and the gateway between raw socket bytes and 3270 data. One
// Session exists per accepted TCP connection and is never shared.
type Session struct {
	SessionID uuid.UUID

	conn   net.Conn
	writeMu sync.Mutex
	werr   error

	tstate     telnetState
	sbOption   byte
	sbData     []byte
	pendingEOR bool
	inbound    bytes.Buffer

	negotiation negotiationFlags
	Bound       bool
	TerminalType string
	seq         uint16

	screenSent        bool
	currentScreenName string

	Codepage      codec.Codepage
	CurrentFields *field.FieldManager

	ScreenProvider ScreenProvider
	OnInput        InputHandler

	bindFlushDelay time.Duration
	fallbackDelay  time.Duration
	sleepFn        func(time.Duration)

	log *gwlog.Logger

	fallbackMu sync.Mutex
	fallback   *time.Timer
}

// NewSession wraps conn in a fresh negotiation state machine. logger
// may be nil, in which case gwlog's package-level default is used.
func NewSession(conn net.Conn, logger *gwlog.Logger) *Session {
	if logger == nil {
		logger = gwlog.New()
	}
	id := uuid.New()
	s := &Session{
		SessionID:      id,
		conn:           conn,
		Codepage:       codec.CP037,
		bindFlushDelay: 10 * time.Millisecond,
		fallbackDelay:  1 * time.Second,
		sleepFn:        time.Sleep,
		log:            logger.With(id.String(), "negotiating"),
	}
	return s
}

func (s *Session) binaryMode() bool     { return s.negotiation.binary }
func (s *Session) tn3270eEnabled() bool { return s.negotiation.tn3270e }

// CurrentScreenName returns the name of the last screen rendered to
// this session, used to route inbound input to the right selector.
func (s *Session) CurrentScreenName() string { return s.currentScreenName }

// RemoteAddr returns the underlying connection's remote address, for
// callers (e.g. the admin socket's session registry) that need to
// report on a session without reaching into negotiate internals.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

// SetCurrentScreen records which screen template is now on the glass
// and the field set used to route its inbound input. It does not touch
// the screen_sent guard; that guard only governs the unsolicited
// initial screen, and SendScreen itself is not gated by it.
func (s *Session) SetCurrentScreen(name string, fm *field.FieldManager) {
	s.currentScreenName = name
	s.CurrentFields = fm
}

func (s *Session) write(p []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.werr != nil {
		return
	}
	if _, err := s.conn.Write(p); err != nil {
		s.werr = err
	}
}

// flush is a documented no-op: net.Conn.Write is unbuffered in this
// implementation (no bufio.Writer sits in front of it), so every write
// already reaches the kernel socket buffer immediately. The call site
// is kept because spec.md calls out an explicit flush step before the
// BIND-IMAGE delay -- some clients drop a write that is coalesced with
// the one immediately following it.
func (s *Session) flush() {}

// WriteErr returns the first error encountered writing to the
// underlying connection, if any.
func (s *Session) WriteErr() error { return s.werr }

func (s *Session) nextSeq() uint16 {
	seq := s.seq
	s.seq++
	return seq
}

// frame wraps payload per spec.md §4.5's outbound framing rule: a
// 3-byte TN3270E header when tn3270e is enabled, none otherwise: in
// both cases the record is terminated with IAC EOR.
func (s *Session) frame(payload []byte) []byte {
	var buf bytes.Buffer
	if s.tn3270eEnabled() {
		seq := s.nextSeq()
		buf.WriteByte(0x00)
		buf.WriteByte(byte(seq >> 8))
		buf.WriteByte(byte(seq))
	}
	buf.Write(payload)
	buf.WriteByte(IAC)
	buf.WriteByte(EORc)
	return buf.Bytes()
}

// SendScreen frames and writes a 3270 data-stream payload, recording it
// as the current screen's field set for inbound routing.
func (s *Session) SendScreen(name string, stream []byte, fm *field.FieldManager) {
	s.SetCurrentScreen(name, fm)
	s.write(s.frame(stream))
}

// recheckScreenGate re-evaluates spec.md §4.5's screen-send gate:
// binary_mode && tn3270e_enabled && bound && !screen_sent. It must be
// called after every inbound buffer is processed and after every
// outbound negotiation reply, since any of those can be what finally
// satisfies the condition.
func (s *Session) recheckScreenGate() {
	if !(s.binaryMode() && s.tn3270eEnabled() && s.Bound && !s.screenSent) {
		return
	}
	if s.ScreenProvider == nil {
		return
	}
	name, stream, fm, err := s.ScreenProvider(s)
	if err != nil {
		s.log.Errorf("negotiate: screen provider failed: %v", err)
		return
	}
	s.screenSent = true
	s.log = s.log.With(s.SessionID.String(), "active")
	s.SendScreen(name, stream, fm)
}

// startFallbackTimer arms the 1-second proactive-fallback timer:
// clients that never send REQUEST DEVICE-TYPE are nudged with an
// unsolicited one. The returned func disarms it; callers defer it.
func (s *Session) startFallbackTimer() func() {
	s.fallbackMu.Lock()
	s.fallback = time.AfterFunc(s.fallbackDelay, func() {
		if s.tn3270eEnabled() && strings.HasPrefix(s.TerminalType, "IBM-3278") && !s.Bound {
			payload := append([]byte{TN3270ERequestDeviceType}, DefaultDeviceType...)
			s.writeSubneg(OptTN3270E, payload)
			s.log.Infof("negotiate: proactive fallback REQUEST DEVICE-TYPE")
		}
	})
	s.fallbackMu.Unlock()
	return func() {
		s.fallbackMu.Lock()
		s.fallback.Stop()
		s.fallbackMu.Unlock()
	}
}

// HandleInbound feeds raw bytes read from the connection through the
// IAC demultiplexer, assembling completed 3270 records (delimited by
// IAC EOR) and dispatching them to OnInput. It re-checks the
// screen-send gate once the buffer is fully processed.
func (s *Session) HandleInbound(raw []byte) error {
	var data bytes.Buffer
	if err := s.demux(raw, &data); err != nil {
		return err
	}
	if data.Len() > 0 {
		s.inbound.Write(data.Bytes())
	}
	if s.pendingEOR {
		rec := append([]byte(nil), s.inbound.Bytes()...)
		s.inbound.Reset()
		s.pendingEOR = false
		s.processRecord(rec)
	}
	s.recheckScreenGate()
	return nil
}

// processRecord interprets one EOR-terminated inbound record as a 3270
// AID transmission: strip the TN3270E header if present, then an AID
// byte followed by zero or more SBA-delimited modified-field runs.
func (s *Session) processRecord(rec []byte) {
	if s.tn3270eEnabled() {
		if len(rec) < 3 {
			s.log.Warnf("negotiate: inbound TN3270E record too short for header")
			return
		}
		rec = rec[3:]
	}
	if len(rec) == 0 {
		return
	}
	aid := rec[0]
	modified := s.parseModifiedFields(rec[1:])
	if s.OnInput != nil {
		s.OnInput(s, aid, modified)
	}
}

// parseModifiedFields walks an AID-stripped inbound payload: each
// modified field begins with an SBA to its data-start buffer address,
// followed by a run of EBCDIC bytes that continues until the next SBA
// or the end of the payload. Runs whose address does not fall inside
// any field's DataRange are orphan input and are discarded, per
// spec.md §9's open-question resolution.
func (s *Session) parseModifiedFields(payload []byte) map[string]string {
	out := make(map[string]string)
	if s.CurrentFields == nil {
		return out
	}
	i := 0
	for i < len(payload) {
		if payload[i] != OrderSBA || i+2 >= len(payload) {
			i++
			continue
		}
		addr := decodeBufAddr(payload[i+1], payload[i+2])
		i += 3
		start := i
		for i < len(payload) && payload[i] != OrderSBA {
			i++
		}
		run := payload[start:i]
		if f, ok := s.CurrentFields.FieldAt(addr); ok {
			out[f.Name] = string(s.Codepage.FromHost(run))
		}
	}
	return out
}

// OrderSBA is the Set Buffer Address order byte, duplicated here (it
// also lives in internal/tnstream) since inbound parsing must recognize
// it independent of the assembler.
const OrderSBA = 0x11

func decodeBufAddr(hi, lo byte) int {
	return int(hi&0x3F)<<6 | int(lo&0x3F)
}

// Run drives the session to completion: it writes the opening
// handshake, arms the proactive-fallback timer, and then reads from
// the connection until ctx is cancelled, the peer closes, or an I/O
// error occurs. A zero-byte read with io.EOF is a clean close. Any
// other I/O error terminates the session without retry, per spec.md
// §7's IoError policy.
func (s *Session) Run(ctx context.Context) error {
	s.write(openingHandshake)
	if err := s.werr; err != nil {
		return fmt.Errorf("negotiate: opening handshake: %w", err)
	}

	stop := s.startFallbackTimer()
	defer stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if herr := s.HandleInbound(buf[:n]); herr != nil {
				s.log.Warnf("negotiate: %v", herr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ctx.Err()
			}
			return err
		}
	}
}
