// Package negotiate implements the per-connection Telnet/TN3270E
// negotiation state machine: the opening handshake, WILL/DO option
// responses, TERMINAL-TYPE and TN3270E subnegotiations, the
// screen-send gate, the proactive fallback timer, outbound TN3270E
// framing, and inbound AID/field parsing.
package negotiate

import (
	"bytes"
	"fmt"
)

// Telnet command bytes (RFC 854).
const (
	IAC  byte = 0xFF
	DONT byte = 0xFE
	DO   byte = 0xFD
	WONT byte = 0xFC
	WILL byte = 0xFB
	SB   byte = 0xFA
	SE   byte = 0xF0
	NOP  byte = 0xF1
	EORc byte = 0xEF // End-of-Record marker, second byte of IAC EOR
)

// Telnet option codes relevant to TN3270E negotiation.
const (
	OptBinary   byte = 0x00
	OptTermType byte = 0x18
	OptEOR      byte = 0x19
	OptTN3270E  byte = 0x28
)

// TERMINAL-TYPE subnegotiation sub-commands (RFC 1091).
const (
	TermTypeIs   byte = 0x00
	TermTypeSend byte = 0x01
)

// TN3270E subnegotiation sub-commands (RFC 2355).
const (
	TN3270ERequestDeviceType byte = 0x02
	TN3270EDeviceTypeIs      byte = 0x00
	TN3270EBindImage         byte = 0x04
)

// DefaultDeviceType is advertised in every DEVICE-TYPE IS reply and in
// the proactive REQUEST DEVICE-TYPE, whatever the client's terminal
// type, and in TERMINAL-TYPE IS when the session has not yet learned a
// terminal type from the client.
const DefaultDeviceType = "IBM-3278-2"

// openingHandshake is written verbatim the instant a connection is
// accepted, before any bytes are read.
var openingHandshake = []byte{
	IAC, DO, OptTermType,
	IAC, DO, OptBinary,
	IAC, DO, OptEOR,
	IAC, DO, OptTN3270E,
	IAC, NOP,
}

// telnetState drives the IAC demultiplexer. It persists across reads so
// a partial IAC sequence split across two TCP segments resumes cleanly.
type telnetState int

const (
	stateData telnetState = iota
	stateIAC
	stateWill
	stateWont
	stateDo
	stateDont
	stateSB
	stateSBData
	stateSBIAC
)

// demux walks raw inbound bytes through the persistent IAC state
// machine, routing negotiation commands and completed subnegotiations
// to s, and appending any plain data bytes (3270 payload) to dataOut.
// Truncated IAC sequences at the tail of data are left pending in the
// state machine for the next call, per spec.md §4.5 ("partial IAC
// sequences at the end of a read buffer are preserved for the next
// read"); a malformed subnegotiation is dropped and the machine resyncs.
func (s *Session) demux(data []byte, dataOut *bytes.Buffer) error {
	for i := 0; i < len(data); i++ {
		b := data[i]
		switch s.tstate {
		case stateData:
			if b == IAC {
				s.tstate = stateIAC
			} else {
				dataOut.WriteByte(b)
			}

		case stateIAC:
			switch b {
			case IAC:
				dataOut.WriteByte(IAC)
				s.tstate = stateData
			case WILL:
				s.tstate = stateWill
			case WONT:
				s.tstate = stateWont
			case DO:
				s.tstate = stateDo
			case DONT:
				s.tstate = stateDont
			case SB:
				s.tstate = stateSB
			case EORc:
				s.pendingEOR = true
				s.tstate = stateData
			default:
				// NOP, AYT, and other bare IAC commands: consume.
				s.tstate = stateData
			}

		case stateWill:
			s.handleWill(b)
			s.tstate = stateData
		case stateWont:
			s.tstate = stateData
		case stateDo:
			s.handleDo(b)
			s.tstate = stateData
		case stateDont:
			s.tstate = stateData

		case stateSB:
			s.sbOption = b
			s.sbData = s.sbData[:0]
			s.tstate = stateSBData

		case stateSBData:
			if b == IAC {
				s.tstate = stateSBIAC
			} else {
				s.sbData = append(s.sbData, b)
			}

		case stateSBIAC:
			if b == SE {
				if err := s.handleSubnegotiation(); err != nil {
					return err
				}
				s.tstate = stateData
			} else if b == IAC {
				s.sbData = append(s.sbData, IAC)
				s.tstate = stateSBData
			} else {
				// Malformed: IAC inside SB not followed by SE or an
				// escaped IAC. Per spec.md §7 NegotiationError policy,
				// log and resynchronize on the next byte.
				s.log.Warnf("negotiate: malformed subnegotiation, resyncing")
				s.tstate = stateData
			}
		}
	}
	return nil
}

func (s *Session) handleWill(opt byte) {
	switch opt {
	case OptBinary:
		s.negotiation.binary = true
		s.writeIAC(DO, OptBinary)
	case OptTermType:
		s.negotiation.terminalType = true
		s.writeIAC(DO, OptTermType)
		s.writeSubneg(OptTermType, []byte{TermTypeSend})
	case OptEOR:
		s.negotiation.eor = true
		s.writeIAC(DO, OptEOR)
	case OptTN3270E:
		s.negotiation.tn3270e = true
		s.writeIAC(WILL, OptTN3270E)
		s.writeIAC(DO, OptTN3270E)
	}
	s.recheckScreenGate()
}

func (s *Session) handleDo(opt byte) {
	switch opt {
	case OptBinary:
		s.writeIAC(WILL, OptBinary)
	case OptTN3270E:
		s.writeIAC(WILL, OptTN3270E)
	case OptTermType:
		s.writeIAC(WILL, OptTermType)
	case OptEOR:
		s.writeIAC(WILL, OptEOR)
	}
	s.recheckScreenGate()
}

func (s *Session) handleSubnegotiation() error {
	defer s.recheckScreenGate()
	switch s.sbOption {
	case OptTermType:
		return s.handleTermTypeSubneg()
	case OptTN3270E:
		return s.handleTN3270ESubneg()
	default:
		return nil
	}
}

func (s *Session) handleTermTypeSubneg() error {
	if len(s.sbData) == 0 {
		return fmt.Errorf("negotiate: empty TERMINAL-TYPE subnegotiation")
	}
	switch s.sbData[0] {
	case TermTypeSend:
		if s.TerminalType != "" {
			return nil
		}
		s.writeSubneg(OptTermType, append([]byte{TermTypeIs}, DefaultDeviceType...))
	case TermTypeIs:
		s.TerminalType = string(s.sbData[1:])
		s.log.Infof("negotiate: terminal type %q", s.TerminalType)
	}
	return nil
}

func (s *Session) handleTN3270ESubneg() error {
	if len(s.sbData) == 0 {
		return fmt.Errorf("negotiate: empty TN3270E subnegotiation")
	}
	switch s.sbData[0] {
	case TN3270ERequestDeviceType:
		s.writeSubneg(OptTN3270E, append([]byte{TN3270EDeviceTypeIs, 0x02}, DefaultDeviceType...))
		s.flush()
		s.sleepFn(s.bindFlushDelay)
		s.writeSubneg(OptTN3270E, []byte{TN3270EBindImage, 0x00})
		s.Bound = true
		s.log.Infof("negotiate: sent DEVICE-TYPE IS and BIND-IMAGE")
	case TN3270EBindImage:
		s.Bound = true
		s.log.Infof("negotiate: received client BIND-IMAGE")
	}
	return nil
}

func (s *Session) writeIAC(cmd, opt byte) {
	s.write([]byte{IAC, cmd, opt})
}

func (s *Session) writeSubneg(opt byte, payload []byte) {
	buf := make([]byte, 0, len(payload)+5)
	buf = append(buf, IAC, SB, opt)
	buf = append(buf, payload...)
	buf = append(buf, IAC, SE)
	s.write(buf)
}
