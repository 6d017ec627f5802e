package telephony

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"i4.energy/across/smsbridge/modem"
)

// VersionCodesS is the first platform version that creates subscription
// scoped managers through SystemSmsManager.
const VersionCodesS = 31

var (
	ErrNoRadio              = errors.New("telephony: no radio registered")
	ErrUnknownSubscription  = errors.New("telephony: unknown subscription")
	ErrUnsupportedOnVersion = errors.New("telephony: not supported on this platform version")
)

// SubscriptionInfo describes an active SIM subscription.
type SubscriptionInfo struct {
	SubscriptionID int
	SimSlotIndex   int
	DisplayName    string
}

// Services is what the host offers to code running on it.
type Services interface {
	PermissionChecker
	SDKVersion() int
	// ActiveSubscriptionInfoList lists subscriptions whose SIM is ready,
	// ordered by slot.
	ActiveSubscriptionInfoList(ctx context.Context) ([]SubscriptionInfo, error)
	DefaultSmsManager() (SmsManager, error)
	// SmsManagerForSubscriptionID is the static factory of platform
	// versions before VersionCodesS.
	SmsManagerForSubscriptionID(id int) (SmsManager, error)
	SystemSmsManager() (SmsManagerFactory, error)
	RegisterReceiver(r Receiver, action string)
	UnregisterReceiver(r Receiver) error
}

// SmsManagerFactory creates managers bound to a subscription.
type SmsManagerFactory interface {
	CreateForSubscriptionID(id int) (SmsManager, error)
}

type subscription struct {
	id    int
	slot  int
	radio *Radio
}

// Host owns the radios of a telephony device and the services built on
// them.
type Host struct {
	permissions PermissionChecker
	broadcasts  *Broadcasts
	sdkVersion  int
	logger      *slog.Logger

	mu            sync.RWMutex
	subscriptions []subscription
	defaultID     int
}

type HostOption func(*Host)

func WithPermissions(p PermissionChecker) HostOption {
	return func(h *Host) { h.permissions = p }
}

func WithBroadcasts(b *Broadcasts) HostOption {
	return func(h *Host) { h.broadcasts = b }
}

func WithSDKVersion(v int) HostOption {
	return func(h *Host) { h.sdkVersion = v }
}

func WithHostLogger(l *slog.Logger) HostOption {
	return func(h *Host) { h.logger = l }
}

func NewHost(opts ...HostOption) *Host {
	h := &Host{sdkVersion: VersionCodesS}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.permissions == nil {
		h.permissions = CallerPermissions{}
	}
	if h.broadcasts == nil {
		h.broadcasts = NewBroadcasts(h.logger)
	}
	return h
}

// AddRadio registers the radio serving slot and returns its subscription
// id. Ids are assigned from 1 in registration order. The first radio
// becomes the default SMS subscription.
func (h *Host) AddRadio(slot int, r *Radio) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := len(h.subscriptions) + 1
	h.subscriptions = append(h.subscriptions, subscription{id: id, slot: slot, radio: r})
	if h.defaultID == 0 {
		h.defaultID = id
	}
	return id
}

// SetDefaultSmsSubscriptionID selects the subscription DefaultSmsManager
// sends through.
func (h *Host) SetDefaultSmsSubscriptionID(id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.lookup(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSubscription, id)
	}
	h.defaultID = id
	return nil
}

func (h *Host) Broadcasts() *Broadcasts {
	return h.broadcasts
}

func (h *Host) SDKVersion() int {
	return h.sdkVersion
}

// CheckSelfPermission is answered fresh on every call.
func (h *Host) CheckSelfPermission(ctx context.Context, p Permission) PermissionStatus {
	return h.permissions.CheckSelfPermission(ctx, p)
}

func (h *Host) ActiveSubscriptionInfoList(ctx context.Context) ([]SubscriptionInfo, error) {
	h.mu.RLock()
	subs := slices.Clone(h.subscriptions)
	h.mu.RUnlock()

	if len(subs) == 0 {
		return nil, ErrNoRadio
	}
	slices.SortStableFunc(subs, func(a, b subscription) int { return cmp.Compare(a.slot, b.slot) })

	var active []SubscriptionInfo
	for _, sub := range subs {
		state, err := sub.radio.SIMState(ctx)
		if err != nil {
			h.logger.Debug("Skipping subscription with unreadable SIM", "subscription_id", sub.id, "slot", sub.slot, "error", err)
			continue
		}
		if state != modem.SIMReady {
			continue
		}
		active = append(active, SubscriptionInfo{
			SubscriptionID: sub.id,
			SimSlotIndex:   sub.slot,
			DisplayName:    fmt.Sprintf("SIM %d", sub.slot+1),
		})
	}
	return active, nil
}

func (h *Host) DefaultSmsManager() (SmsManager, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.subscriptions) == 0 {
		return nil, ErrNoRadio
	}
	sub, _ := h.lookup(h.defaultID)
	return &radioSmsManager{subscriptionID: sub.id, radio: sub.radio}, nil
}

func (h *Host) SmsManagerForSubscriptionID(id int) (SmsManager, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSubscription, id)
	}
	return &radioSmsManager{subscriptionID: sub.id, radio: sub.radio}, nil
}

func (h *Host) SystemSmsManager() (SmsManagerFactory, error) {
	if h.sdkVersion < VersionCodesS {
		return nil, ErrUnsupportedOnVersion
	}
	return systemSmsManager{h}, nil
}

func (h *Host) RegisterReceiver(r Receiver, action string) {
	h.broadcasts.RegisterReceiver(r, action)
}

func (h *Host) UnregisterReceiver(r Receiver) error {
	return h.broadcasts.UnregisterReceiver(r)
}

// lookup must be called with h.mu held.
func (h *Host) lookup(id int) (subscription, bool) {
	for _, sub := range h.subscriptions {
		if sub.id == id {
			return sub, true
		}
	}
	return subscription{}, false
}

type systemSmsManager struct {
	host *Host
}

func (s systemSmsManager) CreateForSubscriptionID(id int) (SmsManager, error) {
	return s.host.SmsManagerForSubscriptionID(id)
}
