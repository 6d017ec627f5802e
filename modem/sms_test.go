package modem_test

import (
	context "context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"i4.energy/across/smsbridge/modem"
)

const testPDU = "0011000B911326880736F40000A90AE8329BFD4697D9EC37"

// newLoopedModem initializes a modem over mockTransport and starts its Loop.
func newLoopedModem(t *testing.T, ctrl *gomock.Controller, mockTransport *modem.MockTransport) (*modem.Modem, context.Context) {
	t.Helper()

	mockDialer := modem.NewMockDialer(ctrl)
	gomock.InOrder(
		slices.Concat(
			[]any{
				mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
			},
			initMockCalls(mockTransport),
		)...,
	)

	config, err := modem.NewConfigBuilder().WithDialer(mockDialer).Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	ctx := context.Background()
	m, err := modem.New(ctx, config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}

	go func() {
		if err := m.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) && err != io.EOF {
			t.Errorf("modem loop error: %v", err)
		}
	}()
	return m, ctx
}

func TestSendPDU(t *testing.T) {
	// SendPDU follows the PDU mode submission sequence:
	//
	//  1. Write: AT+CMGS=<tpdu length>\r
	//  2. Read:  "> " (wait for prompt)
	//  3. Write: "<pdu hex>\x1a\r" (only after receiving prompt)
	//  4. Read:  "+CMGS: <mr>\r\nOK\r\n" (wait for confirmation)
	//
	// allowRead keeps the confirmation from being read before the PDU is
	// written, and allowEOF keeps the scanner alive until SendPDU returns.
	t.Run("Success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m, ctx := newLoopedModem(t, ctrl, mockTransport)
		defer m.Close()

		allowRead := make(chan struct{})
		allowEOF := make(chan struct{})

		mockTransport.EXPECT().Write([]byte("AT+CMGS=23\r"))
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, "> "), nil
		})
		mockTransport.EXPECT().Write([]byte(testPDU + "\x1a\r")).Do(func([]byte) {
			close(allowRead)
		})
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-allowRead
			return copy(p, "+CMGS: 42\r\nOK\r\n"), nil
		})
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-allowEOF
			return 0, io.EOF
		})
		mockTransport.EXPECT().Close().Return(nil)

		mr, err := m.SendPDU(ctx, 23, testPDU)
		close(allowEOF)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mr != 42 {
			t.Errorf("expected message reference 42, got %d", mr)
		}
	})

	t.Run("Error on no prompt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m, ctx := newLoopedModem(t, ctrl, mockTransport)
		defer m.Close()

		allowEOF := make(chan struct{})

		mockTransport.EXPECT().Write([]byte("AT+CMGS=23\r"))
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, "ERROR\r\n"), nil
		})
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-allowEOF
			return 0, io.EOF
		})
		mockTransport.EXPECT().Close().Return(nil)

		_, err := m.SendPDU(ctx, 23, testPDU)
		close(allowEOF)

		if err == nil {
			t.Error("expected SendPDU to fail when no prompt received")
		}
	})

	t.Run("No service rejection", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		m, ctx := newLoopedModem(t, ctrl, mockTransport)
		defer m.Close()

		allowRead := make(chan struct{})
		allowEOF := make(chan struct{})

		mockTransport.EXPECT().Write([]byte("AT+CMGS=23\r"))
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, "> "), nil
		})
		mockTransport.EXPECT().Write([]byte(testPDU + "\x1a\r")).Do(func([]byte) {
			close(allowRead)
		})
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-allowRead
			return copy(p, "+CMS ERROR: 331\r\n"), nil
		})
		mockTransport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			<-allowEOF
			return 0, io.EOF
		})
		mockTransport.EXPECT().Close().Return(nil)

		_, err := m.SendPDU(ctx, 23, testPDU)
		close(allowEOF)

		var cmsErr *modem.CMSError
		if !errors.As(err, &cmsErr) {
			t.Fatalf("expected *modem.CMSError, got: %v", err)
		}
		if cmsErr.Code != 331 || !cmsErr.NoService() {
			t.Errorf("expected no service error 331, got code %d", cmsErr.Code)
		}
		if !strings.Contains(err.Error(), "+CMS ERROR: 331") {
			t.Errorf("expected original error to be wrapped: %v", err)
		}
	})

	t.Run("Error on closed modem", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		mockTransport := modem.NewMockTransport(ctrl)
		mockDialer := modem.NewMockDialer(ctrl)

		gomock.InOrder(
			slices.Concat(
				[]any{
					mockDialer.EXPECT().Dial(gomock.Any()).Return(mockTransport, nil),
				},
				initMockCalls(mockTransport),
			)...,
		)
		mockTransport.EXPECT().Close().Return(nil)

		config, err := modem.NewConfigBuilder().WithDialer(mockDialer).Build()
		if err != nil {
			t.Fatalf("config build failed: %v", err)
		}

		m, err := modem.New(context.Background(), config)
		if err != nil {
			t.Fatalf("modem creation failed: %v", err)
		}

		m.Close()

		_, err = m.SendPDU(context.Background(), 23, testPDU)
		if !errors.Is(err, modem.ErrAlreadyClosed) {
			t.Errorf("expected ErrAlreadyClosed, got: %v", err)
		}
	})
}

// startTestModem initializes a modem over a TestTransport, drains the
// initialization commands and runs the Loop until the test ends.
func startTestModem(t *testing.T) (*modem.Modem, *modem.TestTransport) {
	t.Helper()

	transport := modem.NewTestTransport()
	for _, resp := range []string{
		"OK\r\n",
		"OK\r\n",
		"OK\r\n",
		"+CPIN: READY\r\nOK\r\n",
		"OK\r\n",
	} {
		transport.SendData(resp)
	}

	config, err := modem.NewConfigBuilder().
		WithDialer(modem.DialerFunc(func(context.Context) (modem.Transport, error) {
			return transport, nil
		})).
		Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	m, err := modem.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create modem: %v", err)
	}

	for range 5 {
		<-transport.Written()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Loop(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = m.Close()
		<-done
	})
	return m, transport
}

// nextWrite returns the next command written to the transport.
func nextWrite(t *testing.T, transport *modem.TestTransport) string {
	t.Helper()
	select {
	case cmd := <-transport.Written():
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("expected a command to be written")
		return ""
	}
}

func TestSIMStatus(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected modem.SIMState
		wantErr  bool
	}{
		{name: "Ready", response: "+CPIN: READY\r\nOK\r\n", expected: modem.SIMReady},
		{name: "PIN required", response: "+CPIN: SIM PIN\r\nOK\r\n", expected: modem.SIMPinRequired},
		{name: "PUK required", response: "+CPIN: SIM PUK\r\nOK\r\n", expected: modem.SIMPukRequired},
		{name: "Not inserted", response: "+CME ERROR: SIM not inserted\r\n", expected: modem.SIMAbsent},
		{name: "Failure", response: "+CME ERROR: SIM failure\r\n", expected: modem.SIMUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, transport := startTestModem(t)

			// Answer only once the query has reached the transport.
			go func() {
				if cmd := <-transport.Written(); cmd == "AT+CPIN?\r" {
					transport.SendData(tt.response)
				}
			}()

			state, err := m.SIMStatus(context.Background())
			if tt.wantErr != (err != nil) {
				t.Fatalf("expected error=%v, got: %v", tt.wantErr, err)
			}
			if state != tt.expected {
				t.Errorf("expected state %v, got %v", tt.expected, state)
			}
		})
	}
}

func TestSIMStatusWaitsForSendPDU(t *testing.T) {
	m, transport := startTestModem(t)
	ctx := context.Background()

	type sendResult struct {
		mr  int
		err error
	}
	sent := make(chan sendResult, 1)
	go func() {
		mr, err := m.SendPDU(ctx, 23, testPDU)
		sent <- sendResult{mr: mr, err: err}
	}()

	if cmd := nextWrite(t, transport); cmd != "AT+CMGS=23\r" {
		t.Fatalf("expected AT+CMGS=23, got %q", cmd)
	}

	type statusResult struct {
		state modem.SIMState
		err   error
	}
	status := make(chan statusResult, 1)
	go func() {
		state, err := m.SIMStatus(ctx)
		status <- statusResult{state: state, err: err}
	}()

	// The status query must not reach the modem between the prompt
	// request and the PDU.
	time.Sleep(50 * time.Millisecond)
	transport.SendData("> ")

	if cmd := nextWrite(t, transport); cmd != testPDU+"\x1a\r" {
		t.Fatalf("expected the PDU after the prompt, got %q", cmd)
	}
	transport.SendData("+CMGS: 7\r\nOK\r\n")

	select {
	case res := <-sent:
		if res.err != nil {
			t.Fatalf("unexpected error from SendPDU: %v", res.err)
		}
		if res.mr != 7 {
			t.Errorf("expected message reference 7, got %d", res.mr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendPDU did not return")
	}

	if cmd := nextWrite(t, transport); cmd != "AT+CPIN?\r" {
		t.Fatalf("expected AT+CPIN? after the submission, got %q", cmd)
	}
	transport.SendData("+CPIN: READY\r\nOK\r\n")

	select {
	case res := <-status:
		if res.err != nil {
			t.Fatalf("unexpected error from SIMStatus: %v", res.err)
		}
		if res.state != modem.SIMReady {
			t.Errorf("expected state %v, got %v", modem.SIMReady, res.state)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SIMStatus did not return")
	}
}
