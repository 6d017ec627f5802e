package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient is the part of mqtt.Client a binding uses.
type MQTTClient interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
}

// mqttCall is a method call received over MQTT. ID names the reply topic.
type mqttCall struct {
	ID    string `json:"id"`
	Token string `json:"token,omitempty"`
	MethodCall
}

// MQTTBinding serves one channel over MQTT. Calls arrive on
// <prefix>/<name>/call and each reply is published to
// <prefix>/<name>/reply/<id>.
type MQTTBinding struct {
	client  MQTTClient
	prefix  string
	channel *MethodChannel
	auth    *Authenticator
	logger  *slog.Logger
	qos     byte
	timeout time.Duration
}

func NewMQTTBinding(client MQTTClient, prefix string, ch *MethodChannel, auth *Authenticator, logger *slog.Logger) *MQTTBinding {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTBinding{
		client:  client,
		prefix:  prefix,
		channel: ch,
		auth:    auth,
		logger:  logger.With("channel", ch.Name()),
		qos:     1,
		timeout: 10 * time.Second,
	}
}

func (b *MQTTBinding) CallTopic() string {
	return fmt.Sprintf("%s/%s/call", b.prefix, b.channel.Name())
}

func (b *MQTTBinding) ReplyTopic(id string) string {
	return fmt.Sprintf("%s/%s/reply/%s", b.prefix, b.channel.Name(), id)
}

// Subscribe starts receiving calls. It must be called again after the
// client reconnects without a persistent session.
func (b *MQTTBinding) Subscribe() error {
	token := b.client.Subscribe(b.CallTopic(), b.qos, func(_ mqtt.Client, msg mqtt.Message) {
		b.Handle(context.Background(), msg)
	})
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("subscribe %s: timed out", b.CallTopic())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.CallTopic(), err)
	}
	b.logger.Info("Subscribed to method calls", "topic", b.CallTopic())
	return nil
}

// Handle serves one call message and publishes its reply.
func (b *MQTTBinding) Handle(ctx context.Context, msg mqtt.Message) {
	var call mqttCall
	if err := decodeBytes(msg.Payload(), &call); err != nil {
		b.logger.Warn("Dropping malformed call", "topic", msg.Topic(), "error", err)
		return
	}
	if call.ID == "" {
		b.logger.Warn("Dropping call without id", "topic", msg.Topic(), "method", call.Method)
		return
	}

	env := b.invoke(ctx, call)

	payload, err := json.Marshal(env)
	if err != nil {
		b.logger.Error("Failed to encode reply", "id", call.ID, "error", err)
		return
	}
	token := b.client.Publish(b.ReplyTopic(call.ID), b.qos, false, payload)
	if !token.WaitTimeout(b.timeout) {
		b.logger.Error("Timed out publishing reply", "id", call.ID)
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Error("Failed to publish reply", "id", call.ID, "error", err)
	}
}

func (b *MQTTBinding) invoke(ctx context.Context, call mqttCall) Envelope {
	if call.Method == "" {
		return ErrorEnvelope(CodeBadRequest, "method is required")
	}
	if b.auth != nil {
		var err error
		ctx, err = b.auth.Authorize(ctx, call.Token)
		if err != nil {
			b.logger.Info("Rejected unauthenticated call", "id", call.ID, "error", err)
			return ErrorEnvelope(CodeUnauthenticated, err.Error())
		}
	}
	return b.channel.Invoke(ctx, call.MethodCall)
}
