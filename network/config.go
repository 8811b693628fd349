package network

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role defines the network topology role
type Role uint8

const (
	RoleNone   Role = iota // Feed disabled
	RoleServer             // Accepts watchers, broadcasts the feed
	RoleClient             // Connects to a feed server
)

// ErrInvalidConfig is returned by Validate and ParseRole
var ErrInvalidConfig = errors.New("invalid network config")

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "none"
	}
}

// ParseRole maps "none", "server" or "client" to a Role
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return RoleNone, nil
	case "server":
		return RoleServer, nil
	case "client":
		return RoleClient, nil
	}
	return RoleNone, fmt.Errorf("%w: unknown role %q", ErrInvalidConfig, s)
}

// Config holds network configuration
type Config struct {
	// Role determines connection behavior
	Role Role `mapstructure:"-"`

	// Address to bind (server) or connect to (client)
	Address string `mapstructure:"address"`

	// TLS configuration (nil = plaintext)
	TLS *tls.Config `mapstructure:"-"`

	// Connection limits
	MaxPeers int `mapstructure:"max_peers"`

	// Timing
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// Buffer sizes
	ReadBufferSize  int `mapstructure:"read_buffer_size"`
	WriteBufferSize int `mapstructure:"write_buffer_size"`
	SendQueueSize   int `mapstructure:"send_queue_size"`
}

// DefaultConfig returns defaults with the feed disabled
func DefaultConfig() *Config {
	return &Config{
		Role:              RoleNone,
		Address:           ":7777",
		MaxPeers:          16,
		ConnectTimeout:    5 * time.Second,
		ReadTimeout:       30 * time.Second,
		HeartbeatInterval: 10 * time.Second,
		ReadBufferSize:    64 * 1024,
		WriteBufferSize:   64 * 1024,
		SendQueueSize:     1024,
	}
}

// DebugConfig returns config with TLS disabled for local testing
func DebugConfig(role Role, addr string) *Config {
	cfg := DefaultConfig()
	cfg.Role = role
	cfg.Address = addr
	return cfg
}

// Validate checks limits and timings
func (c *Config) Validate() error {
	if c.Role == RoleNone {
		return nil
	}
	switch {
	case c.Address == "":
		return fmt.Errorf("%w: empty address", ErrInvalidConfig)
	case c.MaxPeers <= 0:
		return fmt.Errorf("%w: max peers %d", ErrInvalidConfig, c.MaxPeers)
	case c.SendQueueSize <= 0:
		return fmt.Errorf("%w: send queue size %d", ErrInvalidConfig, c.SendQueueSize)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: heartbeat interval %s", ErrInvalidConfig, c.HeartbeatInterval)
	case c.ReadTimeout > 0 && c.ReadTimeout <= c.HeartbeatInterval:
		return fmt.Errorf("%w: read timeout %s must exceed heartbeat interval %s",
			ErrInvalidConfig, c.ReadTimeout, c.HeartbeatInterval)
	}
	return nil
}
