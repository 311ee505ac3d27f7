package common

import (
	"fmt"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultCacheTTL           = 5 * time.Minute
	DefaultCacheGCInterval    = 30 * time.Second
	DefaultSearchLimit        = 50
	DefaultSessionTTL         = 30 * time.Minute
	DefaultRememberMeTTL      = 12 * 24 * time.Hour
	DefaultSweepInterval      = 10 * time.Minute
	DefaultPaymentFailureRate = 0.05
	DefaultPaymentLatency     = 500 * time.Millisecond
)

// --------------------------------------------------------------------------
// Shop configuration struct
// --------------------------------------------------------------------------

// ShopConfig holds every tunable of the data layer.
type ShopConfig struct {
	// DataDir is the directory holding one <collection>.json file per collection
	DataDir string

	// Cache settings
	CacheTTL        time.Duration
	CacheGCInterval time.Duration

	// SearchLimit caps the number of search results
	SearchLimit int

	// Session settings
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	SweepInterval time.Duration

	// Simulated payment gateway
	PaymentFailureRate float64
	PaymentLatency     time.Duration

	// Endpoint serves /metrics and /healthz (serve command only)
	Endpoint string

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() ShopConfig {
	return ShopConfig{
		DataDir:            "data",
		CacheTTL:           DefaultCacheTTL,
		CacheGCInterval:    DefaultCacheGCInterval,
		SearchLimit:        DefaultSearchLimit,
		SessionTTL:         DefaultSessionTTL,
		RememberMeTTL:      DefaultRememberMeTTL,
		SweepInterval:      DefaultSweepInterval,
		PaymentFailureRate: DefaultPaymentFailureRate,
		PaymentLatency:     DefaultPaymentLatency,
		Endpoint:           "127.0.0.1:8080",
		LogLevel:           "info",
	}
}

// Validate checks the configuration for values the services cannot work with.
func (c *ShopConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL)
	}
	if c.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive, got %d", c.SearchLimit)
	}
	if c.SessionTTL <= 0 || c.RememberMeTTL <= 0 {
		return fmt.Errorf("session ttls must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.CacheGCInterval <= 0 {
		return fmt.Errorf("cache gc interval must be positive, got %s", c.CacheGCInterval)
	}
	if c.PaymentFailureRate < 0 || c.PaymentFailureRate > 1 {
		return fmt.Errorf("payment failure rate must be within [0,1], got %v", c.PaymentFailureRate)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ShopConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Data Directory", c.DataDir)

	addSection("Cache")
	addField("TTL", c.CacheTTL.String())
	addField("GC Interval", c.CacheGCInterval.String())
	addField("Search Limit", fmt.Sprintf("%d", c.SearchLimit))

	addSection("Sessions")
	addField("TTL", c.SessionTTL.String())
	addField("Remember Me TTL", c.RememberMeTTL.String())
	addField("Sweep Interval", c.SweepInterval.String())

	addSection("Payment")
	addField("Failure Rate", fmt.Sprintf("%.2f%%", c.PaymentFailureRate*100))
	addField("Latency", c.PaymentLatency.String())

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Log Level", c.LogLevel)

	return sb.String()
}
