// Package config defines all configuration for the wager bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via WAGER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Feed      FeedConfig      `mapstructure:"feed"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// FeedConfig holds the social feed API endpoint and credentials.
// BotUserID is the bot's own author id; mentions it authored are skipped so
// the bot never processes its own replies.
type FeedConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Token         string `mapstructure:"token"`
	BotUserID     string `mapstructure:"bot_user_id"`
	RepliesPerMin int    `mapstructure:"replies_per_min"`
}

// LedgerConfig tunes the settlement ledger.
//
//   - DataPath: sqlite file holding the append-only ledger event log.
//   - MinBet/MaxBet: accepted stake bounds, decimal strings (e.g. "0.001").
//   - FeeBps: platform fee on the losing pool, in basis points (200 = 2%).
//   - DefaultDurationDays: market duration when a command doesn't name one.
//   - PlatformAccount: account the fee accrues to.
//   - Resolvers: accounts allowed to resolve markets.
type LedgerConfig struct {
	DataPath            string   `mapstructure:"data_path"`
	MinBet              string   `mapstructure:"min_bet"`
	MaxBet              string   `mapstructure:"max_bet"`
	FeeBps              int64    `mapstructure:"fee_bps"`
	DefaultDurationDays int      `mapstructure:"default_duration_days"`
	PlatformAccount     string   `mapstructure:"platform_account"`
	Resolvers           []string `mapstructure:"resolvers"`

	// Parsed from MinBet/MaxBet by Validate.
	MinBetAmount decimal.Decimal `mapstructure:"-"`
	MaxBetAmount decimal.Decimal `mapstructure:"-"`
}

// IngestConfig bounds the adaptive polling schedule.
//
//   - BaseInterval: poll interval while mentions are flowing.
//   - FirstTimeIdleInterval: interval used when the bot has never seen a
//     mention (longer than base; nothing has ever happened yet).
//   - MaxInterval: ceiling for geometric backoff after repeated empty polls.
//   - EmptyThreshold: consecutive empty polls before backoff starts growing.
//   - CooldownInterval: fixed long pause after an upstream rate limit.
//   - CursorPath: directory for the crash-safe cursor checkpoint file.
type IngestConfig struct {
	BaseInterval          time.Duration `mapstructure:"base_interval"`
	FirstTimeIdleInterval time.Duration `mapstructure:"first_time_idle_interval"`
	MaxInterval           time.Duration `mapstructure:"max_interval"`
	EmptyThreshold        int           `mapstructure:"empty_threshold"`
	CooldownInterval      time.Duration `mapstructure:"cooldown_interval"`
	CursorPath            string        `mapstructure:"cursor_path"`
}

// WalletConfig holds the payout wallet. Withdrawals debit the ledger and
// then send on-chain from this wallet. In dry-run mode transfers are logged
// instead of sent; the ledger debit still happens.
type WalletConfig struct {
	RPCURL     string `mapstructure:"rpc_url"`
	PrivateKey string `mapstructure:"private_key"` // WAGER_WALLET_KEY
	ChainID    int64  `mapstructure:"chain_id"`
	DryRun     bool   `mapstructure:"dry_run"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the operator HTTP/WebSocket endpoint.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	// AllowedOrigins restricts WebSocket origins. Empty means same-host
	// and localhost only.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: WAGER_FEED_TOKEN, WAGER_BOT_USER_ID,
// WAGER_WALLET_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("WAGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override sensitive fields from env
	if tok := os.Getenv("WAGER_FEED_TOKEN"); tok != "" {
		cfg.Feed.Token = tok
	}
	if id := os.Getenv("WAGER_BOT_USER_ID"); id != "" {
		cfg.Feed.BotUserID = id
	}
	if key := os.Getenv("WAGER_WALLET_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, and parses the
// decimal bet bounds.
func (c *Config) Validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed.base_url is required")
	}
	if c.Feed.Token == "" {
		return fmt.Errorf("feed.token is required (set WAGER_FEED_TOKEN)")
	}
	if c.Feed.BotUserID == "" {
		return fmt.Errorf("feed.bot_user_id is required (set WAGER_BOT_USER_ID)")
	}
	if c.Feed.RepliesPerMin <= 0 {
		c.Feed.RepliesPerMin = 30
	}

	minBet, err := decimal.NewFromString(c.Ledger.MinBet)
	if err != nil {
		return fmt.Errorf("ledger.min_bet %q: %w", c.Ledger.MinBet, err)
	}
	maxBet, err := decimal.NewFromString(c.Ledger.MaxBet)
	if err != nil {
		return fmt.Errorf("ledger.max_bet %q: %w", c.Ledger.MaxBet, err)
	}
	if minBet.Sign() <= 0 {
		return fmt.Errorf("ledger.min_bet must be > 0")
	}
	if maxBet.LessThan(minBet) {
		return fmt.Errorf("ledger.max_bet must be >= ledger.min_bet")
	}
	c.Ledger.MinBetAmount = minBet
	c.Ledger.MaxBetAmount = maxBet

	if c.Ledger.FeeBps < 0 || c.Ledger.FeeBps > 10000 {
		return fmt.Errorf("ledger.fee_bps must be in [0, 10000]")
	}
	if c.Ledger.DefaultDurationDays < 1 || c.Ledger.DefaultDurationDays > 365 {
		return fmt.Errorf("ledger.default_duration_days must be in [1, 365]")
	}
	if c.Ledger.PlatformAccount == "" {
		return fmt.Errorf("ledger.platform_account is required")
	}
	if len(c.Ledger.Resolvers) == 0 {
		return fmt.Errorf("ledger.resolvers must name at least one account")
	}
	if c.Ledger.DataPath == "" {
		return fmt.Errorf("ledger.data_path is required")
	}

	if c.Ingest.BaseInterval <= 0 {
		return fmt.Errorf("ingest.base_interval must be > 0")
	}
	if c.Ingest.FirstTimeIdleInterval < c.Ingest.BaseInterval {
		return fmt.Errorf("ingest.first_time_idle_interval must be >= ingest.base_interval")
	}
	if c.Ingest.MaxInterval < c.Ingest.BaseInterval {
		return fmt.Errorf("ingest.max_interval must be >= ingest.base_interval")
	}
	if c.Ingest.EmptyThreshold <= 0 {
		return fmt.Errorf("ingest.empty_threshold must be > 0")
	}
	if c.Ingest.CooldownInterval <= 0 {
		return fmt.Errorf("ingest.cooldown_interval must be > 0")
	}
	if c.Ingest.CursorPath == "" {
		return fmt.Errorf("ingest.cursor_path is required")
	}

	if !c.Wallet.DryRun {
		if c.Wallet.RPCURL == "" {
			return fmt.Errorf("wallet.rpc_url is required unless wallet.dry_run is set")
		}
		if c.Wallet.PrivateKey == "" {
			return fmt.Errorf("wallet.private_key is required unless wallet.dry_run is set (set WAGER_WALLET_KEY)")
		}
		if c.Wallet.ChainID <= 0 {
			return fmt.Errorf("wallet.chain_id must be > 0")
		}
	}

	return nil
}
