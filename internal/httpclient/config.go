package httpclient

import (
	"fmt"
	"time"
)

const (
	// DefaultPoolName is the connection pool name reported in stats and logs
	DefaultPoolName = "myConnectionPool"

	// Pool sizing large enough that the pool is never the bottleneck
	DefaultMaxConnections         = 100_000
	DefaultPendingAcquireMaxCount = 100_000

	// DefaultPendingAcquireTimeout bounds how long a caller waits for a free slot
	DefaultPendingAcquireTimeout = 45 * time.Second

	// Socket timeouts default to "very long" so they never trip under normal load
	DefaultConnectTimeout = 1_000_000 * time.Millisecond
	DefaultReadTimeout    = 1_000_000 * time.Millisecond
	DefaultWriteTimeout   = 1_000_000 * time.Millisecond

	// DefaultMaxInMemorySize caps buffered response bodies (500 KiB)
	DefaultMaxInMemorySize = 500 * 1024

	TCPKeepAliveInterval = 30 * time.Second
	IdleConnTimeout      = 90 * time.Second
)

// Config is the client configuration. It is read once at construction.
type Config struct {
	Name                   string
	MaxConnections         int
	PendingAcquireMaxCount int
	PendingAcquireTimeout  time.Duration // 0 waits until the caller's context ends
	ConnectTimeout         time.Duration // 0 disables
	ReadTimeout            time.Duration // 0 disables
	WriteTimeout           time.Duration // 0 disables
	MaxInMemorySize        int64
}

// DefaultConfig returns the reference pool configuration
func DefaultConfig() Config {
	return Config{
		Name:                   DefaultPoolName,
		MaxConnections:         DefaultMaxConnections,
		PendingAcquireMaxCount: DefaultPendingAcquireMaxCount,
		PendingAcquireTimeout:  DefaultPendingAcquireTimeout,
		ConnectTimeout:         DefaultConnectTimeout,
		ReadTimeout:            DefaultReadTimeout,
		WriteTimeout:           DefaultWriteTimeout,
		MaxInMemorySize:        DefaultMaxInMemorySize,
	}
}

// Validate validates the client configuration
func (c Config) Validate() error {
	if c.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be greater than 0")
	}
	if c.PendingAcquireMaxCount < 0 {
		return fmt.Errorf("pending acquire max count cannot be negative")
	}
	if c.PendingAcquireTimeout < 0 {
		return fmt.Errorf("pending acquire timeout cannot be negative")
	}
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	if c.MaxInMemorySize <= 0 {
		return fmt.Errorf("max in-memory size must be greater than 0")
	}
	return nil
}
