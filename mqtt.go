package main

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"i4.energy/across/smsbridge/channel"
)

// connectMQTT connects to the configured broker and serves ch on it. The
// call topic is subscribed again on every reconnect.
func connectMQTT(config *Config, ch *channel.MethodChannel, auth *channel.Authenticator, logger *slog.Logger) (mqtt.Client, error) {
	var binding *channel.MQTTBinding

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.MQTTBroker)
	opts.SetClientID(config.MQTTClientID)
	if config.MQTTUsername != "" {
		opts.SetUsername(config.MQTTUsername)
		opts.SetPassword(config.MQTTPassword)
	}
	opts.SetOrderMatters(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connected", "broker", config.MQTTBroker)
		if err := binding.Subscribe(); err != nil {
			logger.Error("Failed to subscribe to method calls", "error", err)
		}
	})

	client := mqtt.NewClient(opts)
	binding = channel.NewMQTTBinding(client, config.MQTTTopicPrefix, ch, auth, logger)

	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, fmt.Errorf("connect to MQTT broker %s: timed out", config.MQTTBroker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", config.MQTTBroker, err)
	}
	return client, nil
}
