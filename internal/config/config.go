// Package config loads escrow-lab configuration from environment variables.
// A .env file in the working directory is read first; variables already set
// in the environment win. Binaries use the loaded values as flag defaults.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// ErrMissingDSN is returned by Validate when persistent storage is selected
// without connection strings.
var ErrMissingDSN = errors.New("postgres and clickhouse DSNs are required unless USE_MEMORY is set")

// Server holds escrowd configuration.
type Server struct {
	// HTTP listener for JSON-RPC, WebSocket and metrics
	Addr string `env:"ESCROWD_ADDR" envDefault:":8899"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Ledger
	ProgramKeypair    string        `env:"ESCROW_PROGRAM_KEYPAIR"` // optional keypair file for the program ID
	SlotInterval      time.Duration `env:"SLOT_INTERVAL" envDefault:"400ms"`
	FeePerSignature   uint64        `env:"FEE_PER_SIGNATURE" envDefault:"5000"`
	ComputeBudget     uint64        `env:"COMPUTE_BUDGET" envDefault:"200000"`
	SubscriptionQueue int           `env:"SUBSCRIPTION_QUEUE" envDefault:"1024"` // undelivered notifications before a subscriber is dropped

	// Storage
	UseMemory        bool   `env:"USE_MEMORY" envDefault:"true"`
	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"8"`
	ClickhouseDSN    string `env:"CLICKHOUSE_DSN"`

	// Indexer
	IndexerBatchSize     int           `env:"INDEXER_BATCH_SIZE" envDefault:"100"`
	IndexerFlushInterval time.Duration `env:"INDEXER_FLUSH_INTERVAL" envDefault:"1s"`

	// Airdrop rate limiting. An empty REDIS_URL keeps buckets in memory.
	RedisURL           string        `env:"REDIS_URL"`
	AirdropBurst       int           `env:"AIRDROP_BURST" envDefault:"5"`
	AirdropRefill      time.Duration `env:"AIRDROP_REFILL" envDefault:"12s"`
	AirdropMaxLamports uint64        `env:"AIRDROP_MAX_LAMPORTS" envDefault:"100000000000"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Validate checks option combinations env tags cannot express.
func (c *Server) Validate() error {
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		return ErrMissingDSN
	}
	if c.SlotInterval < 0 {
		return fmt.Errorf("SLOT_INTERVAL must not be negative, got %s", c.SlotInterval)
	}
	if c.AirdropBurst <= 0 {
		return fmt.Errorf("AIRDROP_BURST must be positive, got %d", c.AirdropBurst)
	}
	return nil
}

// Client holds configuration for tools that talk to a running escrowd.
type Client struct {
	RPCEndpoint string `env:"ESCROW_RPC_ENDPOINT" envDefault:"http://localhost:8899"`
	WSEndpoint  string `env:"ESCROW_WS_ENDPOINT" envDefault:"ws://localhost:8899/ws"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// Used by escrow-indexer and escrow-report
	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"4"`
	ClickhouseDSN    string `env:"CLICKHOUSE_DSN"`

	RequestTimeout time.Duration `env:"RPC_TIMEOUT" envDefault:"30s"`
}

// Load parses escrowd configuration from the environment.
func Load() (*Server, error) {
	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadClient parses client configuration from the environment.
func LoadClient() (*Client, error) {
	cfg := &Client{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
