package modem

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"i4.energy/across/smsbridge/at"
)

// SIMState is the SIM card condition reported by AT+CPIN?.
type SIMState int

const (
	SIMUnknown SIMState = iota
	SIMReady
	SIMPinRequired
	SIMPukRequired
	SIMAbsent
)

func (s SIMState) String() string {
	switch s {
	case SIMReady:
		return "ready"
	case SIMPinRequired:
		return "pin-required"
	case SIMPukRequired:
		return "puk-required"
	case SIMAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// SendPDU submits one SMS-SUBMIT PDU to the network.
//
// tpduLen is the TPDU length in octets, excluding the SMSC address that
// prefixes pduHex. The modem must be in PDU mode (set by New).
//
// This method blocks until the message is accepted by the network or an error
// occurs, and returns the message reference assigned by the network. Delivery
// to the final recipient happens asynchronously.
func (m *Modem) SendPDU(ctx context.Context, tpduLen int, pduHex string) (int, error) {
	if err := m.exchange.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("wait for modem: %w", err)
	}
	defer m.exchange.Release(1)

	resp, err := m.exec(ctx, fmt.Sprintf("AT+CMGS=%d", tpduLen))
	if err != nil {
		return 0, fmt.Errorf("AT+CMGS command failed: %w", err)
	}

	if !strings.Contains(resp, at.Prompt) {
		return 0, fmt.Errorf("%w, got: %q", ErrNoPrompt, resp)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.config.sendTimeout)
	defer cancel()

	resp, err = m.exec(sendCtx, pduHex+at.CtrlZ)
	if err != nil {
		return 0, fmt.Errorf("SMS send failed: %w", err)
	}

	if !strings.Contains(resp, at.OK) {
		return 0, fmt.Errorf("unexpected SMS response: %s", resp)
	}

	for _, line := range strings.Split(resp, "\n") {
		if mr, ok := at.ParseSendResult(line); ok {
			return mr, nil
		}
	}
	return 0, nil
}

// SIMStatus queries the SIM card state through the running Loop.
func (m *Modem) SIMStatus(ctx context.Context) (SIMState, error) {
	if err := m.exchange.Acquire(ctx, 1); err != nil {
		return SIMUnknown, fmt.Errorf("wait for modem: %w", err)
	}
	defer m.exchange.Release(1)

	resp, err := m.exec(ctx, at.CmdSimStatus)
	if err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			return SIMUnknown, err
		}
		if strings.Contains(strings.ToLower(resp+err.Error()), "not inserted") {
			return SIMAbsent, nil
		}
		return SIMUnknown, fmt.Errorf("query SIM status: %w", err)
	}

	switch {
	case strings.Contains(resp, at.SimReady):
		return SIMReady, nil
	case strings.Contains(resp, at.SimPin):
		return SIMPinRequired, nil
	case strings.Contains(resp, at.SimPuk):
		return SIMPukRequired, nil
	default:
		return SIMUnknown, nil
	}
}
