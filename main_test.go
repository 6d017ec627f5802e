package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"i4.energy/across/smsbridge/modem"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogURCs(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	urcs := make(chan string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		logURCs(ctx, urcs, logger)
	}()

	urcs <- `+CDSI: "SM",4`
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "+CDSI:")
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("logURCs did not stop")
	}
}

func TestRunStopsStartedSlotsOnSetupFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent(), goleak.IgnoreTopFunction("os/signal.signal_recv"))

	restore := dialSlot
	t.Cleanup(func() { dialSlot = restore })
	dialSlot = func(slot SlotPort, _ int) modem.Dialer {
		return modem.DialerFunc(func(context.Context) (modem.Transport, error) {
			if slot.Slot != 0 {
				return nil, errors.New("port busy")
			}
			transport := modem.NewTestTransport()
			for _, resp := range []string{"OK\r\n", "OK\r\n", "OK\r\n", "+CPIN: READY\r\nOK\r\n", "OK\r\n"} {
				transport.SendData(resp)
			}
			return transport, nil
		})
	}

	config, err := LoadConfig(WithDefaults())
	require.NoError(t, err)
	config.SimSlots = "0=/dev/ttyUSB2,1=/dev/ttyUSB5"

	done := make(chan error, 1)
	go func() {
		done <- run(config, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "modem for slot 1")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the second slot failed")
	}
}
