package negotiate

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/neo6/tn3270gw/internal/field"
)

// fakeConn is a minimal non-blocking net.Conn stand-in: writes
// accumulate in a buffer that tests can inspect, reads always report
// EOF immediately (tests drive the state machine directly via
// HandleInbound rather than through Session.Run's read loop).
type fakeConn struct {
	mu  sync.Mutex
	out bytes.Buffer
}

func (c *fakeConn) Read([]byte) (int, error) { return 0, io.EOF }
func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}
func (c *fakeConn) Close() error                       { return nil }
func (c *fakeConn) LocalAddr() net.Addr                { return fakeAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr               { return fakeAddr{} }
func (c *fakeConn) SetDeadline(time.Time) error        { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error    { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error   { return nil }

func (c *fakeConn) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.out.Bytes()...)
}

func (c *fakeConn) Reset() {
	c.mu.Lock()
	c.out.Reset()
	c.mu.Unlock()
}

type fakeAddr struct{}

func (fakeAddr) Network() string { return "fake" }
func (fakeAddr) String() string  { return "fake" }

func subneg(opt byte, payload ...byte) []byte {
	out := []byte{IAC, SB, opt}
	out = append(out, payload...)
	out = append(out, IAC, SE)
	return out
}

// TestEmptyBindScreenSendGate drives scenario 1: a client that
// completes WILL BINARY/TN3270E/TERMINAL-TYPE/EOR, answers
// TERMINAL-TYPE IS, then sends REQUEST DEVICE-TYPE, must receive
// DEVICE-TYPE IS, BIND-IMAGE, and exactly one framed 3270 payload.
func TestEmptyBindScreenSendGate(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, nil)
	s.sleepFn = func(time.Duration) {} // skip the real 10ms bind-flush delay
	screen := []byte{0xF5, 0xC0}
	s.ScreenProvider = func(*Session) (string, []byte, *field.FieldManager, error) {
		return "welcome", screen, field.NewFieldManager(), nil
	}

	wills := []byte{
		IAC, WILL, OptBinary,
		IAC, WILL, OptTN3270E,
		IAC, WILL, OptTermType,
		IAC, WILL, OptEOR,
	}
	if err := s.HandleInbound(wills); err != nil {
		t.Fatalf("HandleInbound(wills): %v", err)
	}
	if !s.binaryMode() || !s.tn3270eEnabled() {
		t.Fatalf("expected binary_mode and tn3270e_enabled after WILLs")
	}

	termIs := subneg(OptTermType, append([]byte{TermTypeIs}, "IBM-3278-2"...)...)
	if err := s.HandleInbound(termIs); err != nil {
		t.Fatalf("HandleInbound(termIs): %v", err)
	}
	if s.TerminalType != "IBM-3278-2" {
		t.Fatalf("TerminalType = %q, want IBM-3278-2", s.TerminalType)
	}

	conn.Reset()
	reqDT := subneg(OptTN3270E, append([]byte{TN3270ERequestDeviceType}, DefaultDeviceType...)...)
	if err := s.HandleInbound(reqDT); err != nil {
		t.Fatalf("HandleInbound(reqDT): %v", err)
	}

	out := conn.Bytes()
	wantDT := subneg(OptTN3270E, append([]byte{TN3270EDeviceTypeIs, 0x02}, DefaultDeviceType...)...)
	if !bytes.Contains(out, wantDT) {
		t.Errorf("missing DEVICE-TYPE IS in %x", out)
	}
	wantBind := subneg(OptTN3270E, TN3270EBindImage, 0x00)
	if !bytes.Contains(out, wantBind) {
		t.Errorf("missing BIND-IMAGE in %x", out)
	}
	if !s.Bound {
		t.Fatal("expected Bound = true")
	}

	wantPayload := append([]byte{0x00, 0x00, 0x00}, screen...)
	wantPayload = append(wantPayload, IAC, EORc)
	if !bytes.Contains(out, wantPayload) {
		t.Errorf("missing framed screen payload in %x, want %x", out, wantPayload)
	}
	if !s.screenSent {
		t.Fatal("expected screenSent = true")
	}
	if s.CurrentScreenName() != "welcome" {
		t.Errorf("CurrentScreenName() = %q, want welcome", s.CurrentScreenName())
	}

	// A second bind-like event must not trigger a second screen send.
	conn.Reset()
	if err := s.HandleInbound(reqDT); err != nil {
		t.Fatalf("HandleInbound(reqDT again): %v", err)
	}
	if bytes.Contains(conn.Bytes(), wantPayload) {
		t.Error("screen must be sent at most once per bind")
	}
}

// TestClientBindImageAlsoSatisfiesGate covers the inbound BIND-IMAGE
// path (a client that echoes BIND-IMAGE back without us ever sending
// REQUEST DEVICE-TYPE handling).
func TestClientBindImageAlsoSatisfiesGate(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, nil)
	s.ScreenProvider = func(*Session) (string, []byte, *field.FieldManager, error) {
		return "welcome", []byte{0xF5, 0xC0}, field.NewFieldManager(), nil
	}
	s.negotiation.binary = true
	s.negotiation.tn3270e = true

	bindFromClient := subneg(OptTN3270E, TN3270EBindImage, 0x00)
	if err := s.HandleInbound(bindFromClient); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if !s.Bound || !s.screenSent {
		t.Fatalf("Bound=%v screenSent=%v, want both true", s.Bound, s.screenSent)
	}
}

// TestProactiveFallbackFiresWhenDeviceTypeNeverRequested covers
// scenario 5: after the fallback delay, a session that never received
// REQUEST DEVICE-TYPE sends one unsolicited.
func TestProactiveFallbackFiresWhenDeviceTypeNeverRequested(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, nil)
	s.fallbackDelay = 20 * time.Millisecond
	s.TerminalType = "IBM-3278-2"
	s.negotiation.tn3270e = true

	stop := s.startFallbackTimer()
	defer stop()
	time.Sleep(80 * time.Millisecond)

	want := subneg(OptTN3270E, append([]byte{TN3270ERequestDeviceType}, DefaultDeviceType...)...)
	if !bytes.Contains(conn.Bytes(), want) {
		t.Errorf("expected unsolicited REQUEST DEVICE-TYPE, got %x", conn.Bytes())
	}
}

func TestProactiveFallbackSkippedWhenAlreadyBound(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, nil)
	s.fallbackDelay = 20 * time.Millisecond
	s.TerminalType = "IBM-3278-2"
	s.negotiation.tn3270e = true
	s.Bound = true

	stop := s.startFallbackTimer()
	defer stop()
	time.Sleep(80 * time.Millisecond)

	if len(conn.Bytes()) != 0 {
		t.Errorf("fallback should not fire once bound, got %x", conn.Bytes())
	}
}

func TestProactiveFallbackSkippedForNonIBM3278Terminal(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn, nil)
	s.fallbackDelay = 20 * time.Millisecond
	s.TerminalType = "VT100"
	s.negotiation.tn3270e = true

	stop := s.startFallbackTimer()
	defer stop()
	time.Sleep(80 * time.Millisecond)

	if len(conn.Bytes()) != 0 {
		t.Errorf("fallback should not fire for a non-IBM-3278 terminal, got %x", conn.Bytes())
	}
}

func TestParseModifiedFieldsRoutesByDataRange(t *testing.T) {
	fm := field.NewFieldManager()
	f, err := field.New("user", 5, 10, 4, field.Attributes{}, "")
	if err != nil {
		t.Fatalf("field.New: %v", err)
	}
	if err := fm.Add(f); err != nil {
		t.Fatalf("fm.Add: %v", err)
	}

	s := NewSession(&fakeConn{}, nil)
	s.CurrentFields = fm

	start, _ := f.DataRange()
	hi := byte((start>>6)&0x3F) | 0x40
	lo := byte(start&0x3F) | 0x40
	payload := []byte{OrderSBA, hi, lo}
	payload = append(payload, s.Codepage.ToHost([]byte("abcd"))...)

	got := s.parseModifiedFields(payload)
	if got["user"] != "abcd" {
		t.Errorf("parseModifiedFields = %v, want user=abcd", got)
	}
}

func TestParseModifiedFieldsDiscardsOrphanRuns(t *testing.T) {
	s := NewSession(&fakeConn{}, nil)
	s.CurrentFields = field.NewFieldManager()

	payload := []byte{OrderSBA, 0x40, 0x40}
	payload = append(payload, s.Codepage.ToHost([]byte("x"))...)
	got := s.parseModifiedFields(payload)
	if len(got) != 0 {
		t.Errorf("expected no routed fields for an unowned address, got %v", got)
	}
}

func TestRunWritesOpeningHandshakeImmediately(t *testing.T) {
	client, server := net.Pipe()
	s := NewSession(server, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	buf := make([]byte, len(openingHandshake))
	if _, err := io.ReadFull(client, buf); err != nil {
		t.Fatalf("read handshake: %v", err)
	}
	if !bytes.Equal(buf, openingHandshake) {
		t.Errorf("handshake = %x, want %x", buf, openingHandshake)
	}

	cancel()
	client.Close()
	<-done
}
