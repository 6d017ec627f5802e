package telephony

import (
	"errors"
	"log/slog"
	"sync"
)

var ErrReceiverNotRegistered = errors.New("telephony: receiver not registered")

// Receiver is notified of intents broadcast for the action it registered
// for. Receivers are compared by identity, so implementations must be
// pointer types.
type Receiver interface {
	OnReceive(intent Intent)
}

// Broadcasts routes intents to dynamically registered receivers.
type Broadcasts struct {
	logger *slog.Logger

	mu        sync.Mutex
	receivers map[Receiver]string

	inflight sync.WaitGroup
}

func NewBroadcasts(logger *slog.Logger) *Broadcasts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcasts{
		logger:    logger,
		receivers: make(map[Receiver]string),
	}
}

// RegisterReceiver subscribes r to intents carrying action. Registering a
// receiver again replaces its previous action.
func (b *Broadcasts) RegisterReceiver(r Receiver, action string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receivers[r] = action
}

func (b *Broadcasts) UnregisterReceiver(r Receiver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.receivers[r]; !ok {
		return ErrReceiverNotRegistered
	}
	delete(b.receivers, r)
	return nil
}

// SendBroadcast delivers intent asynchronously to every receiver registered
// for its action at the time of the call. Intents nobody listens for are
// dropped.
func (b *Broadcasts) SendBroadcast(intent Intent) {
	b.mu.Lock()
	var targets []Receiver
	for r, action := range b.receivers {
		if action == intent.Action {
			targets = append(targets, r)
		}
	}
	b.mu.Unlock()

	if len(targets) == 0 {
		b.logger.Debug("Dropping broadcast without receivers", "action", intent.Action, "result", intent.ResultCode)
		return
	}

	for _, r := range targets {
		b.inflight.Add(1)
		go func() {
			defer b.inflight.Done()
			r.OnReceive(intent)
		}()
	}
}

// Registered reports how many receivers are currently registered.
func (b *Broadcasts) Registered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.receivers)
}

// Wait blocks until every delivery started so far has returned.
func (b *Broadcasts) Wait() {
	b.inflight.Wait()
}
