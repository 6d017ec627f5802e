package telephony

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/warthog618/sms"
)

//go:generate go tool mockgen -destination=mock_sms_manager.go -package=telephony . SmsManager

var (
	ErrInvalidDestination = errors.New("telephony: invalid destination address")
	ErrInvalidMessageBody = errors.New("telephony: invalid message body")
)

// SmsManager submits short messages through one subscription.
type SmsManager interface {
	SubscriptionID() int
	DivideMessage(text string) []string
	// SendTextMessage queues text for transmission. sentIntent, if not nil,
	// is broadcast once the radio has handled the message.
	SendTextMessage(ctx context.Context, destination, text string, sentIntent *PendingIntent) error
	// SendMultipartTextMessage queues parts as one concatenated message.
	// sentIntents[i] is broadcast for part i. A shorter slice reuses its last
	// entry for the remaining parts.
	SendMultipartTextMessage(ctx context.Context, destination string, parts []string, sentIntents []*PendingIntent) error
}

type radioSmsManager struct {
	subscriptionID int
	radio          *Radio
}

func (m *radioSmsManager) SubscriptionID() int {
	return m.subscriptionID
}

func (m *radioSmsManager) DivideMessage(text string) []string {
	return DivideMessage(text)
}

func (m *radioSmsManager) SendTextMessage(ctx context.Context, destination, text string, sentIntent *PendingIntent) error {
	if text == "" {
		return ErrInvalidMessageBody
	}
	return m.send(ctx, destination, text, []*PendingIntent{sentIntent})
}

func (m *radioSmsManager) SendMultipartTextMessage(ctx context.Context, destination string, parts []string, sentIntents []*PendingIntent) error {
	if len(parts) == 0 {
		return ErrInvalidMessageBody
	}
	return m.send(ctx, destination, strings.Join(parts, ""), sentIntents)
}

func (m *radioSmsManager) send(ctx context.Context, destination, text string, intents []*PendingIntent) error {
	if destination == "" {
		return ErrInvalidDestination
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	segments, err := encodeSubmit(destination, text)
	if err != nil {
		return err
	}
	for i := range segments {
		if len(intents) > 0 {
			segments[i].sent = intents[min(i, len(intents)-1)]
		}
	}

	return m.radio.submit(submission{destination: destination, segments: segments})
}

// encodeSubmit encodes text as SMS-SUBMIT PDUs with an empty SMSC address,
// so the modem uses its configured service center.
func encodeSubmit(destination, text string) ([]segment, error) {
	tpdus, err := sms.Encode([]byte(text), sms.AsSubmit, sms.To(destination))
	if err != nil {
		return nil, fmt.Errorf("encode SMS: %w", err)
	}

	segments := make([]segment, 0, len(tpdus))
	for i, t := range tpdus {
		b, err := t.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal PDU %d: %w", i+1, err)
		}
		segments = append(segments, segment{
			tpduLen: len(b),
			pduHex:  strings.ToUpper(hex.EncodeToString(append([]byte{0x00}, b...))),
		})
	}
	return segments, nil
}
