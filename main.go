package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"i4.energy/across/smsbridge/bridge"
	"i4.energy/across/smsbridge/channel"
	"i4.energy/across/smsbridge/modem"
	"i4.energy/across/smsbridge/observability"
	"i4.energy/across/smsbridge/telephony"
)

var version = "dev"

// dialSlot returns the dialer of the modem serving a SIM slot.
var dialSlot = func(slot SlotPort, baudRate int) modem.Dialer {
	return modem.SerialDialer{PortName: slot.Port, BaudRate: baudRate}
}

func main() {
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port of the modem when -sim-slots is not set")
	flag.String("sim-slots", "", "SIM slot to serial port map (e.g. 0=/dev/ttyUSB2,1=/dev/ttyUSB5)")
	flag.Int("baud-rate", 115200, "Baud rate for serial communication")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.String("sim-pin", "", "SIM card PIN code (if required)")
	flag.Int("default-slot", -1, "SIM slot used when callers do not pick one (-1 for the first slot)")
	flag.Duration("min-send-interval", 10*time.Second, "Minimum interval between two transmissions on a modem")
	flag.String("channel", "sms_sender", "Method channel name")
	flag.String("mqtt-broker", "", "MQTT broker URL (e.g. tcp://localhost:1883), empty disables MQTT")
	flag.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces and metrics, empty disables export")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(flag.CommandLine))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stderr, config.LogLevel)
	slog.SetDefault(logger)

	if err := run(config, logger); err != nil {
		logger.Error("SMS bridge stopped", "error", err)
		os.Exit(1)
	}
}

func run(config *Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slots, err := config.Slots()
	if err != nil {
		return err
	}

	telemetry, err := observability.Init(ctx, observability.Config{
		ServiceName:    "smsbridge",
		ServiceVersion: version,
		OTLPEndpoint:   config.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to flush telemetry", "error", err)
		}
	}()

	grants := make([]telephony.Permission, 0, len(config.GrantedPermissions))
	for _, p := range config.GrantedPermissions {
		grants = append(grants, telephony.Permission(p))
	}
	broadcasts := telephony.NewBroadcasts(logger.With("component", "broadcasts"))
	host := telephony.NewHost(
		telephony.WithPermissions(telephony.CallerPermissions{Fallback: telephony.NewStaticPermissions(grants...)}),
		telephony.WithBroadcasts(broadcasts),
		telephony.WithSDKVersion(config.SDKVersion),
		telephony.WithHostLogger(logger.With("component", "host")),
	)

	g, gctx := errgroup.WithContext(ctx)
	// abort stops the goroutines of the slots set up so far.
	abort := func(err error) error {
		stop()
		_ = g.Wait()
		return err
	}

	var modems []*modem.Modem
	// Closes the modems opened so far when setup fails.
	defer func() {
		for _, m := range modems {
			_ = m.Close()
		}
	}()

	for _, slot := range slots {
		modemConfig, err := modem.NewConfigBuilder().
			WithATTimeout(5 * time.Second).
			WithInitTimeout(30 * time.Second).
			WithSimPIN(config.SimPIN).
			WithDialer(dialSlot(slot, config.BaudRate)).
			Build()
		if err != nil {
			return abort(fmt.Errorf("modem config for slot %d: %w", slot.Slot, err))
		}

		m, err := modem.New(ctx, modemConfig)
		if err != nil {
			return abort(fmt.Errorf("modem for slot %d: %w", slot.Slot, err))
		}
		modems = append(modems, m)

		radio := telephony.NewRadio(m, broadcasts, telephony.RadioOptions{
			QueueSize:       config.QueueSize,
			MinSendInterval: config.MinSendInterval,
			Logger:          logger.With("component", "radio", "slot", slot.Slot),
		})
		id := host.AddRadio(slot.Slot, radio)
		if slot.Slot == config.DefaultSlot {
			if err := host.SetDefaultSmsSubscriptionID(id); err != nil {
				return abort(err)
			}
		}
		logger.Info("Registered modem", "modem", m, "slot", slot.Slot, "subscription_id", id)

		g.Go(func() error {
			if err := m.Loop(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("modem loop for slot %d: %w", slot.Slot, err)
			}
			return nil
		})
		g.Go(func() error {
			logURCs(gctx, m.URC(), logger.With("component", "modem", "slot", slot.Slot))
			return nil
		})
		g.Go(func() error {
			if err := radio.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	adapter := bridge.New(host, bridge.WithLogger(logger.With("component", "bridge")))
	smsChannel := channel.NewMethodChannel(config.ChannelName, adapter, logger.With("component", "channel"))

	var auth *channel.Authenticator
	if config.AuthSecret != "" {
		auth = channel.NewAuthenticator([]byte(config.AuthSecret))
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:   logger.With("component", "server"),
			Host:     host,
			Channels: channel.NewHTTPHandler(logger.With("component", "http"), auth, smsChannel),
		},
	}
	g.Go(func() error {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to gracefully shutdown server", "error", err)
		}
		for _, m := range modems {
			if err := m.Close(); err != nil && !errors.Is(err, modem.ErrAlreadyClosed) {
				logger.Error("Failed to close modem", "modem", m, "error", err)
			}
		}
		return nil
	})

	if config.MQTTBroker != "" {
		client, err := connectMQTT(config, smsChannel, auth, logger.With("component", "mqtt"))
		if err != nil {
			return abort(err)
		}
		defer client.Disconnect(500)
	}

	logger.Info("Starting SMS bridge", "version", version, "channel", config.ChannelName, "slots", len(slots))

	err = g.Wait()
	broadcasts.Wait()
	return err
}

// logURCs logs the unsolicited result codes of a modem until ctx is done.
func logURCs(ctx context.Context, urcs <-chan string, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case urc := <-urcs:
			logger.Info("Unsolicited result code", "urc", urc)
		}
	}
}
