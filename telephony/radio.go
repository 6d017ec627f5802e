package telephony

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/smsbridge/modem"
)

var (
	ErrRadioBusy   = errors.New("telephony: radio submit queue is full")
	ErrRadioClosed = errors.New("telephony: radio is closed")
)

// Modem is the slice of *modem.Modem a Radio drives.
type Modem interface {
	SendPDU(ctx context.Context, tpduLen int, pduHex string) (int, error)
	SIMStatus(ctx context.Context) (modem.SIMState, error)
}

// RadioOptions tunes a Radio. Zero values select the defaults.
type RadioOptions struct {
	QueueSize       int
	MinSendInterval time.Duration
	Logger          *slog.Logger
}

const defaultQueueSize = 32

type segment struct {
	tpduLen int
	pduHex  string
	sent    *PendingIntent
}

type submission struct {
	destination string
	segments    []segment
}

// Radio serializes submissions to one modem. Each transmitted segment is
// reported through the segment's PendingIntent.
type Radio struct {
	modem       Modem
	broadcasts  *Broadcasts
	logger      *slog.Logger
	minInterval time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan submission

	lastSend time.Time
}

func NewRadio(m Modem, broadcasts *Broadcasts, opts RadioOptions) *Radio {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Radio{
		modem:       m,
		broadcasts:  broadcasts,
		logger:      opts.Logger,
		minInterval: opts.MinSendInterval,
		queue:       make(chan submission, opts.QueueSize),
	}
}

// submit enqueues s without blocking.
func (r *Radio) submit(s submission) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRadioClosed
	}
	select {
	case r.queue <- s:
		return nil
	default:
		return ErrRadioBusy
	}
}

// SIMState reports the state of the SIM behind this radio.
func (r *Radio) SIMState(ctx context.Context) (modem.SIMState, error) {
	return r.modem.SIMStatus(ctx)
}

// Close stops accepting submissions. Run transmits what is already queued
// and then returns.
func (r *Radio) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.queue)
}

// Run transmits queued submissions until Close is called or ctx is done.
// Submissions still queued when ctx is done are reported as radio off.
func (r *Radio) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.Close()
			for s := range r.queue {
				r.fail(s.segments, 0, ResultErrorRadioOff)
			}
			return ctx.Err()
		case s, ok := <-r.queue:
			if !ok {
				return nil
			}
			r.transmit(ctx, s)
		}
	}
}

func (r *Radio) transmit(ctx context.Context, s submission) {
	for i, seg := range s.segments {
		if err := r.pace(ctx); err != nil {
			r.fail(s.segments, i, ResultErrorRadioOff)
			return
		}

		mr, err := r.modem.SendPDU(ctx, seg.tpduLen, seg.pduHex)
		r.lastSend = time.Now()
		if err != nil {
			code := resultCodeFor(err)
			r.logger.Warn("Failed to transmit segment",
				"destination", s.destination,
				"part", i+1,
				"parts", len(s.segments),
				"result", code,
				"error", err)
			// The remaining parts cannot be reassembled without this one.
			r.fail(s.segments, i, code)
			return
		}

		r.logger.Debug("Transmitted segment",
			"destination", s.destination,
			"part", i+1,
			"parts", len(s.segments),
			"message_ref", mr)
		r.report(seg, i, ResultOK, mr)
	}
}

// pace waits out the minimum interval since the previous transmission.
func (r *Radio) pace(ctx context.Context) error {
	if r.minInterval <= 0 || r.lastSend.IsZero() {
		return nil
	}
	wait := time.Until(r.lastSend.Add(r.minInterval))
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Radio) fail(segments []segment, from int, code ResultCode) {
	for i := from; i < len(segments); i++ {
		r.report(segments[i], i, code, 0)
	}
}

func (r *Radio) report(seg segment, index int, code ResultCode, mr int) {
	if seg.sent == nil {
		return
	}
	r.broadcasts.SendBroadcast(Intent{
		Action:     seg.sent.Action,
		ResultCode: code,
		PartIndex:  index,
		MessageRef: mr,
	})
}

func resultCodeFor(err error) ResultCode {
	var cmsErr *modem.CMSError
	switch {
	case err == nil:
		return ResultOK
	case errors.As(err, &cmsErr) && cmsErr.NoService():
		return ResultErrorNoService
	case errors.Is(err, modem.ErrAlreadyClosed), errors.Is(err, context.Canceled):
		return ResultErrorRadioOff
	default:
		return ResultErrorGenericFailure
	}
}
