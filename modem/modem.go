package modem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"i4.energy/across/smsbridge/at"
)

// Modem represents a GSM/3G/4G cellular modem that communicates via AT commands.
// It provides thread-safe access to SMS functionality and modem operations through
// a centralized event loop that handles all transport I/O.
type Modem struct {
	// transport provides the physical connection to the modem (serial, TCP, etc.)
	transport Transport
	// config contains the modem configuration settings
	config Config
	// closed indicates if the modem has been shut down
	closed atomic.Bool
	// loopRunning indicates if the Loop is currently running
	loopRunning atomic.Bool

	// urcChan receives Unsolicited Result Codes from the modem
	urcChan chan string
	// commands hands AT command requests to the Loop
	commands chan *commandRequest

	// exchange serializes operations that span several commands
	exchange *semaphore.Weighted

	mu sync.Mutex
	// stopLoop cancels the running Loop, if any
	stopLoop context.CancelFunc
}

// commandRequest represents an AT command request to be executed by the Loop.
type commandRequest struct {
	// cmd is the AT command string to send to the modem
	cmd string
	// respChan receives the command response from the Loop
	respChan chan commandResponse
	// ctx provides timeout and cancellation control for the command
	ctx context.Context
}

// commandResponse contains the result of an AT command execution.
type commandResponse struct {
	response string
	err      error
}

// PollConfig defines configuration for polling operations like waiting for SIM readiness.
type PollConfig struct {
	// Interval is the time between polling attempts
	Interval time.Duration
	// Timeout is the maximum time to wait for the condition
	Timeout time.Duration
	// MaxRetries is the maximum number of polling attempts
	MaxRetries int
}

// New creates a new Modem instance with the given configuration.
// It establishes the transport connection and initializes the modem
// for PDU mode SMS submission.
//
// Returns an error if the transport connection or modem initialization
// fails.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	m := &Modem{
		config:    config,
		transport: transport,
		urcChan:   make(chan string, 100), // Buffered to prevent blocking on URCs
		commands:  make(chan *commandRequest),
		exchange:  semaphore.NewWeighted(1),
	}

	initCtx, cancel := context.WithTimeout(ctx, config.initTimeout)
	defer cancel()

	if err := m.init(initCtx); err != nil {
		if m.transport != nil {
			transport.Close()
		}
		return nil, fmt.Errorf("initialize modem: %w", err)
	}

	return m, nil
}

// Loop is the main event loop that handles all transport I/O operations.
// It must be called exactly once after New() and before any other modem operations.
// The Loop coordinates all communication with the modem hardware:
//
// 1. Processes command requests from exec() calls
// 2. Writes AT commands to the transport
// 3. Reads and parses responses from the transport
// 4. Dispatches URCs (Unsolicited Result Codes) to subscribers
// 5. Returns command responses to waiting exec() calls
//
// The Loop runs until the provided context is cancelled or Close is called.
// It's the ONLY goroutine that reads from the transport.
func (m *Modem) Loop(ctx context.Context) error {
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer m.loopRunning.Store(false)

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	m.mu.Lock()
	m.stopLoop = stop
	m.mu.Unlock()

	scanner := bufio.NewScanner(m.transport)
	scanner.Split(at.Splitter)

	tokens := make(chan string, 10)
	scanErrs := make(chan error, 1)

	go func() {
		defer close(tokens)
		for scanner.Scan() {
			token := scanner.Text()
			if token != "" {
				select {
				case tokens <- token:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case scanErrs <- err:
			case <-ctx.Done():
			}
		}
	}()

	var currentCmd *commandRequest
	var currentLines []string

	reply := func(resp commandResponse) {
		currentCmd.respChan <- resp
		currentCmd = nil
		currentLines = nil
	}

	for {
		// While a command awaits its final result no other command reaches
		// the transport.
		commands := m.commands
		var cmdDone <-chan struct{}
		if currentCmd != nil {
			commands = nil
			cmdDone = currentCmd.ctx.Done()
		}

		select {
		case <-ctx.Done():
			if currentCmd != nil {
				reply(commandResponse{err: ctx.Err()})
			}
			return ctx.Err()

		case <-cmdDone:
			reply(commandResponse{err: fmt.Errorf("command timeout: %w", currentCmd.ctx.Err())})

		case req := <-commands:
			currentCmd = req
			currentLines = nil

			wire := strings.TrimSpace(req.cmd) + "\r"
			if _, err := m.transport.Write([]byte(wire)); err != nil {
				reply(commandResponse{err: fmt.Errorf("write command %q: %w", req.cmd, err)})
			}

		case token, ok := <-tokens:
			if !ok {
				if currentCmd != nil {
					reply(commandResponse{err: io.EOF})
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				select {
				case err := <-scanErrs:
					return fmt.Errorf("scanner error: %w", err)
				default:
				}
				return io.EOF
			}

			switch at.Classify(token) {
			case at.TypeURC:
				// URCs can arrive at any time, even during command execution.
				// A full channel drops the URC.
				select {
				case m.urcChan <- token:
				default:
				}

			case at.TypeFinal:
				if currentCmd != nil {
					currentLines = append(currentLines, token)
					response := strings.Join(currentLines, "\n")
					if token == at.OK {
						reply(commandResponse{response: response})
					} else {
						reply(commandResponse{response: response, err: finalError(token)})
					}
				}

			case at.TypeData:
				if currentCmd != nil {
					currentLines = append(currentLines, token)
				}

			case at.TypePrompt:
				if currentCmd != nil {
					currentLines = append(currentLines, token)
					reply(commandResponse{response: strings.Join(currentLines, "\n")})
				}
			}

		case err := <-scanErrs:
			if currentCmd != nil {
				reply(commandResponse{err: fmt.Errorf("read error: %w", err)})
			}
			return fmt.Errorf("scanner error: %w", err)
		}
	}
}

// URC returns a read-only channel that receives Unsolicited Result Codes.
// The channel is buffered, but may drop some URC if not consumed fast enough.
func (m *Modem) URC() <-chan string {
	return m.urcChan
}

// Close shuts down the modem and releases all resources.
// It stops the event loop, closes the transport connection, and marks
// the modem as closed. After calling Close(), the modem cannot be reused.
func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}

	m.mu.Lock()
	stop := m.stopLoop
	m.mu.Unlock()
	if stop != nil {
		stop()
	}

	if m.transport != nil {
		return m.transport.Close()
	}
	return nil
}

// String identifies the modem in log output.
func (m *Modem) String() string {
	if d, ok := m.config.dialer.(SerialDialer); ok {
		return "modem(" + d.PortName + ")"
	}
	return "modem"
}

// init performs the initial setup sequence for the modem hardware.
// This method is called during New() and must complete successfully
// before the modem can be used.
func (m *Modem) init(ctx context.Context) error {
	if err := m.expectOkDirect(ctx, at.CmdAt); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	if err := m.expectOkDirect(ctx, at.CmdEchoOff); err != nil {
		return fmt.Errorf("could not disable echo: %w", err)
	}

	if err := m.expectOkDirect(ctx, at.CmdVerboseErrors); err != nil {
		return fmt.Errorf("could not enable verbose errors: %w", err)
	}

	simStatus, err := m.execDirect(ctx, at.CmdSimStatus)
	if err != nil {
		return fmt.Errorf("query SIM status: %w", err)
	}

	switch {
	case strings.Contains(simStatus, at.SimReady):
		// OK

	case strings.Contains(simStatus, at.SimPin):
		if m.config.simPIN == "" {
			return ErrSIMPinRequired
		}
		if err := m.expectOkDirect(ctx, fmt.Sprintf(`AT+CPIN="%s"`, m.config.simPIN)); err != nil {
			return fmt.Errorf("enter SIM PIN: %w", err)
		}

		if err := m.waitForSIMReady(ctx, PollConfig{}); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported SIM state: %q", simStatus)
	}

	// Segments are submitted as pre-encoded TPDUs.
	if err := m.expectOkDirect(ctx, at.CmdSetPDUMode); err != nil {
		return fmt.Errorf("set SMS PDU mode: %w", err)
	}

	return nil
}

// exec sends an AT command to the modem and waits for the response.
// This method coordinates with the Loop() to ensure thread-safe command execution.
// The Loop() must be running before calling this method.
func (m *Modem) exec(ctx context.Context, cmd string) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}

	if m.transport == nil {
		return "", ErrNotInitialized
	}

	// Apply per-command timeout if context has none
	if _, ok := ctx.Deadline(); !ok && m.config.atTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.atTimeout)
		defer cancel()
	}

	req := &commandRequest{
		cmd:      cmd,
		respChan: make(chan commandResponse, 1), // Buffered to prevent blocking
		ctx:      ctx,
	}

	select {
	case m.commands <- req:
	case <-ctx.Done():
		return "", fmt.Errorf("command cancelled before sending: %w", ctx.Err())
	}

	select {
	case resp := <-req.respChan:
		return resp.response, resp.err
	case <-ctx.Done():
		return "", fmt.Errorf("command timeout: %w", ctx.Err())
	}
}

// execDirect executes an AT command directly on the transport without
// using the channel mechanism and handles the complete request-response
// cycle including timeout management. It is used during modem initialization
// when not yet accepting commands.
//
// WARNING: This method should only be used during initialization.
// Use exec() for normal operations.
func (m *Modem) execDirect(ctx context.Context, cmd string) (string, error) {
	if m.closed.Load() {
		return "", ErrAlreadyClosed
	}
	if m.transport == nil {
		return "", ErrNotInitialized
	}

	if _, ok := ctx.Deadline(); !ok && m.config.atTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.atTimeout)
		defer cancel()
	}

	wire := strings.TrimSpace(cmd) + "\r"
	if _, err := m.transport.Write([]byte(wire)); err != nil {
		return "", fmt.Errorf("write command %q: %w", cmd, err)
	}

	scanner := bufio.NewScanner(m.transport)
	scanner.Split(at.Splitter)

	var lines []string

	for {
		select {
		case <-ctx.Done():
			return strings.Join(lines, "\n"), ctx.Err()
		default:
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return strings.Join(lines, "\n"), fmt.Errorf("read error: %w", err)
			}
			return strings.Join(lines, "\n"), io.EOF
		}

		token := scanner.Text()
		if token == "" {
			continue
		}

		switch at.Classify(token) {
		case at.TypeFinal:
			lines = append(lines, token)
			response := strings.Join(lines, "\n")
			if token == at.OK {
				return response, nil
			}
			return response, finalError(token)

		case at.TypeData:
			lines = append(lines, token)

		case at.TypeURC:
			continue

		case at.TypePrompt:
			lines = append(lines, token)
			return strings.Join(lines, "\n"), nil
		}
	}
}

// expectOkDirect executes an AT command and validates that the response
// contains "OK".
func (m *Modem) expectOkDirect(ctx context.Context, cmd string) error {
	resp, err := m.execDirect(ctx, cmd)
	if err != nil {
		return err
	}
	if !strings.Contains(resp, at.OK) {
		return fmt.Errorf("unexpected response: %q", resp)
	}
	return nil
}

// waitForSIMReady polls the SIM card status until it reports ready state.
// This is necessary after entering a SIM PIN, as the SIM card needs time
// to authenticate and become operational.
func (m *Modem) waitForSIMReady(ctx context.Context, config PollConfig) error {
	var (
		pollInterval = config.Interval
		timeout      = config.Timeout
		maxRetries   = config.MaxRetries
	)

	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = int(timeout / pollInterval)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("SIM not ready: %w", ctx.Err())
		case <-ticker.C:
			retries++
			if retries > maxRetries {
				return fmt.Errorf("SIM not ready after %d retries", maxRetries)
			}
			resp, err := m.execDirect(ctx, at.CmdSimStatus)
			if err != nil {
				if err == ErrAlreadyClosed || err == ErrNotInitialized {
					return fmt.Errorf("SIM status check failed: %w", err)
				}
				continue
			}
			if strings.Contains(resp, at.SimReady) {
				return nil
			}
		}
	}
}
