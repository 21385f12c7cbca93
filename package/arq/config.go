package arq

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"radio_link/package/link"
)

type Role string

const (
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
)

// Config carries the whole session parameter set. Timer fields are plain
// integers (ms/us) so a YAML file can set them directly.
type Config struct {
	Role      Role    `yaml:"role"`
	Frequency float64 `yaml:"frequency"` // carrier frequency [Hz]
	Bandwidth float64 `yaml:"bandwidth"` // [Hz]
	Gain      float64 `yaml:"gain"`      // [dB]

	NumPackets  int `yaml:"num_packets"`
	MaxAttempts int `yaml:"max_attempts"` // master retry budget per packet
	PayloadLen  int `yaml:"payload_len"`  // DATA payload [bytes]

	AckTimeoutMs   int `yaml:"ack_timeout_ms"`   // overall ACK wait per attempt
	SettleDelayMs  int `yaml:"settle_delay_ms"`  // pause before each transmit
	PollIntervalUs int `yaml:"poll_interval_us"` // receive poll granularity
	StartupDelayMs int `yaml:"startup_delay_ms"` // sleep before the first exchange
	IdleTimeoutMs  int `yaml:"idle_timeout_ms"`  // slave gives up after this silence; 0 waits forever

	Check      string `yaml:"check"`
	Modulation string `yaml:"modulation"`
	InnerFEC   string `yaml:"inner_fec"`
	OuterFEC   string `yaml:"outer_fec"`

	Verbose bool `yaml:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		Role:           RoleSlave,
		Frequency:      462e6,
		Bandwidth:      200e3,
		Gain:           40,
		NumPackets:     100,
		MaxAttempts:    500,
		PayloadLen:     200,
		AckTimeoutMs:   240,
		SettleDelayMs:  80,
		PollIntervalUs: 1000,
		StartupDelayMs: 1000,
		IdleTimeoutMs:  30000,
		Check:          "crc32",
		Modulation:     "qpsk",
		InnerFEC:       "h74",
		OuterFEC:       "none",
		Verbose:        true,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Role != RoleMaster && c.Role != RoleSlave {
		return fmt.Errorf("role must be %q or %q, got %q", RoleMaster, RoleSlave, c.Role)
	}
	if c.NumPackets <= 0 {
		return fmt.Errorf("num_packets must be positive, got %d", c.NumPackets)
	}
	// the 16-bit packet id space bounds one session
	if c.NumPackets > 1<<16 {
		return fmt.Errorf("num_packets must not exceed %d, got %d", 1<<16, c.NumPackets)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.PayloadLen < 0 || c.PayloadLen > link.MaxPayloadLen {
		return fmt.Errorf("payload_len must be in 0..%d, got %d", link.MaxPayloadLen, c.PayloadLen)
	}
	if c.AckTimeoutMs <= 0 || c.PollIntervalUs <= 0 {
		return fmt.Errorf("ack_timeout_ms and poll_interval_us must be positive")
	}
	if c.Bandwidth <= 0 {
		return fmt.Errorf("bandwidth must be positive, got %g", c.Bandwidth)
	}
	return nil
}

func (c Config) AckTimeout() time.Duration   { return time.Duration(c.AckTimeoutMs) * time.Millisecond }
func (c Config) SettleDelay() time.Duration  { return time.Duration(c.SettleDelayMs) * time.Millisecond }
func (c Config) PollInterval() time.Duration { return time.Duration(c.PollIntervalUs) * time.Microsecond }
func (c Config) StartupDelay() time.Duration { return time.Duration(c.StartupDelayMs) * time.Millisecond }
func (c Config) IdleTimeout() time.Duration  { return time.Duration(c.IdleTimeoutMs) * time.Millisecond }

func (c Config) FrameConfig() link.FrameConfig {
	return link.FrameConfig{
		Check:     c.Check,
		ModScheme: c.Modulation,
		InnerFEC:  c.InnerFEC,
		OuterFEC:  c.OuterFEC,
	}
}
