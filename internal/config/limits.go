package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// WebSocket connection limits and constraints
const (
	// Connection limits
	MaxConnectionsPerSession = 50
	MaxSessionsPerInstance   = 1000
	MaxTotalConnections      = 10000

	// Rate limiting. Gaze trackers report at 30-60Hz per participant, so the
	// per-connection budget sits far above what control events need.
	MaxMessagesPerSecond = 240
	RateLimitWindow      = time.Second

	// Timeouts
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second
	PongTimeout  = 90 * time.Second // 3x ping interval for network delay tolerance

	// Stimulus pushes may carry inline image data, so single frames can be
	// large. An undersized limit silently drops send_image events.
	MaxMessageBytes = 10 << 20

	// Channel buffers
	ClientSendBufferSize   = 256
	HubBroadcastBufferSize = 256

	// Rooms that never see an end_session are swept on a TTL.
	RoomIdleTTL    = 2 * time.Hour
	RoomSweepEvery = 10 * time.Minute
)

// Duration adds YAML support for Go duration strings ("30m", "2h").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// Bare numeric scalars also decode into strings, so the integer form
	// (nanoseconds) has to be tried first.
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Limits are the tunable transport settings. Defaults come from the
// constants above; a YAML file can override them per deployment.
type Limits struct {
	MaxMessageBytes      int64    `yaml:"max_message_bytes"`
	MaxMessagesPerSecond int      `yaml:"max_messages_per_second"`
	RoomIdleTTL          Duration `yaml:"room_idle_ttl"`
	RoomSweepEvery       Duration `yaml:"room_sweep_every"`
	AllowedOrigins       []string `yaml:"allowed_origins"`
}

func DefaultLimits() *Limits {
	return &Limits{
		MaxMessageBytes:      MaxMessageBytes,
		MaxMessagesPerSecond: MaxMessagesPerSecond,
		RoomIdleTTL:          Duration(RoomIdleTTL),
		RoomSweepEvery:       Duration(RoomSweepEvery),
		AllowedOrigins:       []string{"*"},
	}
}

// LoadLimits reads limit overrides from a YAML file. An empty path returns
// the defaults unchanged.
func LoadLimits(path string) (*Limits, error) {
	limits := DefaultLimits()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read limits file: %w", err)
	}
	if err := yaml.Unmarshal(data, limits); err != nil {
		return nil, fmt.Errorf("failed to parse limits file: %w", err)
	}
	return limits, nil
}
