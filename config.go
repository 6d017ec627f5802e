package main

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "SMSBRIDGE_"

// envListKeys hold comma separated values.
var envListKeys = []string{"granted_permissions"}

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `koanf:"bind_address"`
	// SerialPort is the modem port used when SimSlots is empty
	SerialPort string `koanf:"serial_port"`
	// SimSlots maps SIM slots to modem ports (e.g. "0=/dev/ttyUSB2,1=/dev/ttyUSB5")
	SimSlots string `koanf:"sim_slots"`
	// BaudRate is the baud rate for serial communication with the modems (e.g. 115200)
	BaudRate int `koanf:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `koanf:"log_level"`
	// SimPIN is the SIM card PIN code, shared by all slots
	SimPIN string `koanf:"sim_pin"`
	// DefaultSlot is the slot used when a caller does not pick one. -1 keeps
	// the first configured slot.
	DefaultSlot int `koanf:"default_slot"`
	// SDKVersion is the platform version the telephony host reports
	SDKVersion int `koanf:"sdk_version"`
	// QueueSize bounds the pending submissions per radio
	QueueSize int `koanf:"queue_size"`
	// MinSendInterval is the minimum pause between two transmissions on a radio
	MinSendInterval time.Duration `koanf:"min_send_interval"`

	// ChannelName is the method channel callers address
	ChannelName string `koanf:"channel_name"`
	// AuthSecret enables HS256 caller tokens when set
	AuthSecret string `koanf:"auth_secret"`
	// GrantedPermissions apply to callers that present no token
	GrantedPermissions []string `koanf:"granted_permissions"`

	MQTTBroker      string `koanf:"mqtt_broker"`
	MQTTClientID    string `koanf:"mqtt_client_id"`
	MQTTTopicPrefix string `koanf:"mqtt_topic_prefix"`
	MQTTUsername    string `koanf:"mqtt_username"`
	MQTTPassword    string `koanf:"mqtt_password"`

	// OTLPEndpoint receives traces and metrics when set (e.g. "otel-collector:4317")
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// SlotPort binds a SIM slot to the serial port of its modem.
type SlotPort struct {
	Slot int
	Port string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.DefaultSlot = -1
		c.SDKVersion = 31
		c.QueueSize = 32
		c.MinSendInterval = 10 * time.Second
		c.ChannelName = "sms_sender"
		c.GrantedPermissions = []string{"SEND_SMS"}
		c.MQTTClientID = "smsbridge"
		c.MQTTTopicPrefix = "smsbridge"
		return nil
	}
}

// WithEnv loads configuration from SMSBRIDGE_* environment variables,
// e.g. SMSBRIDGE_BIND_ADDRESS or SMSBRIDGE_MIN_SEND_INTERVAL=5s
func WithEnv() ConfigOption {
	return func(c *Config) error {
		k := koanf.New(".")
		err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			if slices.Contains(envListKeys, key) {
				items := strings.Split(value, ",")
				for i := range items {
					items[i] = strings.TrimSpace(items[i])
				}
				return key, items
			}
			return key, value
		}), nil)
		if err != nil {
			return fmt.Errorf("load env vars: %w", err)
		}

		// A list from the environment replaces the default instead of
		// overwriting its leading elements.
		if k.Exists("granted_permissions") {
			c.GrantedPermissions = nil
		}

		if err := k.Unmarshal("", c); err != nil {
			return fmt.Errorf("unmarshal env vars: %w", err)
		}
		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var errs []error
		atoi := func(name, value string) int {
			n, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("flag -%s: %w", name, err))
			}
			return n
		}

		fSet.Visit(func(f *flag.Flag) {
			value := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = value
			case "serial-port":
				c.SerialPort = value
			case "sim-slots":
				c.SimSlots = value
			case "baud-rate":
				c.BaudRate = atoi(f.Name, value)
			case "log-level":
				c.LogLevel = value
			case "sim-pin":
				c.SimPIN = value
			case "default-slot":
				c.DefaultSlot = atoi(f.Name, value)
			case "min-send-interval":
				d, err := time.ParseDuration(value)
				if err != nil {
					errs = append(errs, fmt.Errorf("flag -%s: %w", f.Name, err))
				}
				c.MinSendInterval = d
			case "channel":
				c.ChannelName = value
			case "mqtt-broker":
				c.MQTTBroker = value
			case "otlp-endpoint":
				c.OTLPEndpoint = value
			}
		})
		return errors.Join(errs...)
	}
}

// Slots returns the configured SIM slots ordered by slot. Without SimSlots
// the single SerialPort serves slot 0.
func (c *Config) Slots() ([]SlotPort, error) {
	if strings.TrimSpace(c.SimSlots) == "" {
		return []SlotPort{{Slot: 0, Port: c.SerialPort}}, nil
	}

	var slots []SlotPort
	for _, entry := range strings.Split(c.SimSlots, ",") {
		slot, port, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || port == "" {
			return nil, fmt.Errorf("invalid SIM slot %q: expected <slot>=<port>", entry)
		}
		n, err := strconv.Atoi(slot)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid SIM slot %q: slot must be a non-negative integer", entry)
		}
		if slices.ContainsFunc(slots, func(s SlotPort) bool { return s.Slot == n }) {
			return nil, fmt.Errorf("duplicate SIM slot %d", n)
		}
		slots = append(slots, SlotPort{Slot: n, Port: port})
	}
	slices.SortFunc(slots, func(a, b SlotPort) int { return a.Slot - b.Slot })
	return slots, nil
}
