// Package bridge exposes SMS submission as the "sendSms" channel method.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"i4.energy/across/smsbridge/channel"
	"i4.energy/across/smsbridge/telephony"
)

const (
	MethodSendSms = "sendSms"

	// DefaultSimSlot selects the host's default SMS subscription.
	DefaultSimSlot = -1

	instrumentationName = "i4.energy/across/smsbridge/bridge"
)

// SendRequest is one SMS submission.
type SendRequest struct {
	Phone   string
	Message string
	SimSlot int
}

// Adapter serves sendSms calls on top of the host telephony services.
type Adapter struct {
	services telephony.Services
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string
	tracer   trace.Tracer
	requests metric.Int64Counter
}

type Option func(*Adapter)

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithClock replaces the clock used to stamp receiver actions.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Adapter) { a.tracer = tp.Tracer(instrumentationName) }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *Adapter) { a.requests = newRequestCounter(mp.Meter(instrumentationName)) }
}

func New(services telephony.Services, opts ...Option) *Adapter {
	a := &Adapter{
		services: services,
		now:      time.Now,
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(instrumentationName)
	}
	if a.requests == nil {
		a.requests = newRequestCounter(otel.Meter(instrumentationName))
	}
	return a
}

func newRequestCounter(meter metric.Meter) metric.Int64Counter {
	counter, err := meter.Int64Counter("sms.bridge.requests",
		metric.WithDescription("sendSms calls by outcome code"),
		metric.WithUnit("{call}"))
	if err != nil {
		otel.Handle(err)
	}
	return counter
}

// HandleMethodCall implements channel.Handler.
func (a *Adapter) HandleMethodCall(ctx context.Context, call channel.MethodCall, result channel.Result) {
	if call.Method != MethodSendSms {
		result.NotImplemented()
		return
	}

	req, err := parseSendRequest(call)
	if err != nil {
		a.logger.Debug("Rejecting sendSms call", "error", err)
		result.Error(CodeInvalidArgs, msgInvalidArgs, nil)
		return
	}

	msg, err := a.SendSms(ctx, req)
	if err != nil {
		var bErr *Error
		if !errors.As(err, &bErr) {
			bErr = sendFailed(err)
		}
		result.Error(bErr.Code, bErr.Message, nil)
		return
	}
	result.Success(msg)
}

func parseSendRequest(call channel.MethodCall) (SendRequest, error) {
	phone, ok := call.StringArgument("phone")
	if !ok {
		return SendRequest{}, errors.New("phone is missing or not a string")
	}
	message, ok := call.StringArgument("message")
	if !ok {
		return SendRequest{}, errors.New("message is missing or not a string")
	}
	slot, present, err := call.IntArgument("simSlot")
	if err != nil {
		return SendRequest{}, err
	}
	if !present {
		slot = DefaultSimSlot
	}
	return SendRequest{Phone: phone, Message: message, SimSlot: slot}, nil
}

// SendSms hands req to the radio and reports how it was queued. Success
// means the message was accepted for sending, not that it was delivered.
// Failures are returned as *Error.
func (a *Adapter) SendSms(ctx context.Context, req SendRequest) (string, error) {
	ctx, span := a.tracer.Start(ctx, "bridge.SendSms", trace.WithAttributes(
		attribute.Int("sms.sim_slot", req.SimSlot),
		attribute.Int("sms.message_length", len(req.Message)),
	))
	defer span.End()

	msg, err := a.sendSms(ctx, req)

	outcome := "OK"
	if err != nil {
		outcome = err.Code
		span.SetStatus(codes.Error, err.Message)
	} else {
		span.SetAttributes(attribute.String("sms.queued", msg))
	}
	a.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("code", outcome)))

	if err != nil {
		return "", err
	}
	return msg, nil
}

func (a *Adapter) sendSms(ctx context.Context, req SendRequest) (msg string, bErr *Error) {
	if a.services.CheckSelfPermission(ctx, telephony.PermissionSendSMS) != telephony.PermissionGranted {
		return "", &Error{Code: CodePermissionDenied, Message: msgPermissionDenied}
	}

	var receiver *sentReceiver
	defer func() {
		if p := recover(); p != nil {
			if receiver != nil {
				_ = a.services.UnregisterReceiver(receiver)
			}
			a.logger.Error("Recovered from panic while sending SMS", "panic", p)
			msg, bErr = "", &Error{Code: CodeSendFailed, Message: fmt.Sprint(p)}
		}
	}()

	action := a.sentAction(req.Phone)
	receiver = &sentReceiver{
		services: a.services,
		logger:   a.logger,
		phone:    req.Phone,
		action:   action,
	}
	a.services.RegisterReceiver(receiver, action)

	msg, err := a.dispatch(ctx, req, &telephony.PendingIntent{Action: action})
	if err != nil {
		// Nothing will be broadcast for a message that never reached the radio.
		_ = a.services.UnregisterReceiver(receiver)
		a.logger.Warn("Failed to send SMS", "phone", req.Phone, "sim_slot", req.SimSlot, "error", err)
		return "", sendFailed(err)
	}
	a.logger.Info("SMS queued", "phone", req.Phone, "sim_slot", req.SimSlot, "action", action, "result", msg)
	return msg, nil
}

func (a *Adapter) dispatch(ctx context.Context, req SendRequest, sent *telephony.PendingIntent) (string, error) {
	manager, err := a.resolveSmsManager(ctx, req.SimSlot)
	if err != nil {
		return "", err
	}

	parts := manager.DivideMessage(req.Message)
	if len(parts) > 1 {
		intents := make([]*telephony.PendingIntent, len(parts))
		for i := range intents {
			intents[i] = sent
		}
		if err := manager.SendMultipartTextMessage(ctx, req.Phone, parts, intents); err != nil {
			return "", err
		}
		return fmt.Sprintf("SMS Queued (Multipart: %d)", len(parts)), nil
	}

	if err := manager.SendTextMessage(ctx, req.Phone, req.Message, sent); err != nil {
		return "", err
	}
	return "SMS Queued (Single)", nil
}

// resolveSmsManager picks the manager for simSlot. An unmatched slot falls
// back to the first active subscription, and an empty or unavailable
// subscription list falls back to the default manager.
func (a *Adapter) resolveSmsManager(ctx context.Context, simSlot int) (telephony.SmsManager, error) {
	if simSlot == DefaultSimSlot {
		return a.services.DefaultSmsManager()
	}

	subs, err := a.services.ActiveSubscriptionInfoList(ctx)
	if err != nil || len(subs) == 0 {
		a.logger.Debug("No active subscriptions, using default SIM", "sim_slot", simSlot, "error", err)
		return a.services.DefaultSmsManager()
	}

	id := subs[0].SubscriptionID
	for _, sub := range subs {
		if sub.SimSlotIndex == simSlot {
			id = sub.SubscriptionID
			break
		}
	}

	if a.services.SDKVersion() >= telephony.VersionCodesS {
		factory, err := a.services.SystemSmsManager()
		if err != nil {
			return nil, err
		}
		return factory.CreateForSubscriptionID(id)
	}
	return a.services.SmsManagerForSubscriptionID(id)
}

// sentAction returns a receiver action unique to one call.
func (a *Adapter) sentAction(phone string) string {
	return fmt.Sprintf("SMS_SENT_%d_%d_%s", a.now().UnixMilli(), stringHash(phone), a.newToken())
}

// stringHash is the 32-bit polynomial hash s[0]*31^(n-1) + ... + s[n-1]
// over UTF-16 code units.
func stringHash(s string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return h
}

// sentReceiver logs the first radio result of one message and then
// unregisters itself.
type sentReceiver struct {
	services telephony.Services
	logger   *slog.Logger
	phone    string
	action   string
	fired    atomic.Bool
}

func (r *sentReceiver) OnReceive(intent telephony.Intent) {
	if !r.fired.CompareAndSwap(false, true) {
		return
	}

	attrs := []any{"phone", r.phone, "action", r.action, "result_code", intent.ResultCode}
	switch intent.ResultCode {
	case telephony.ResultOK:
		r.logger.Info("SMS sent", attrs...)
	case telephony.ResultErrorGenericFailure:
		r.logger.Warn("SMS failed: generic failure", attrs...)
	case telephony.ResultErrorNoService:
		r.logger.Warn("SMS failed: no service", attrs...)
	default:
		r.logger.Warn("SMS failed: unknown result", attrs...)
	}

	_ = r.services.UnregisterReceiver(r)
}
