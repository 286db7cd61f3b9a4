package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	types "github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/observability"
	"github.com/yungbote/yieldvault-backend/internal/temporalx"
)

const defaultJWTSecret = "defaultsecret"

type Config struct {
	LogMode string `env:"LOG_MODE" envDefault:"development"`

	HTTPAddr      string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownGrace time.Duration `env:"HTTP_SHUTDOWN_GRACE" envDefault:"10s"`
	CORSOrigins   []string      `env:"CORS_ORIGINS" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:yieldvault?mode=memory&cache=shared"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecretKey   string        `env:"JWT_SECRET_KEY" envDefault:"defaultsecret"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"yieldvault"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`
	// Admins may provision vaults.
	Admins []string `env:"VAULT_ADMINS" envSeparator:"," envDefault:"admin"`

	RedisAddr     string `env:"REDIS_ADDR"`
	EventsChannel string `env:"EVENTS_CHANNEL" envDefault:"yieldvault:events"`
	EventsBuffer  int    `env:"EVENTS_BUFFER" envDefault:"256"`

	// Assets are custody tokens persisted in the service database.
	Assets []string `env:"ASSETS" envSeparator:"," envDefault:"DAI,WETH"`
	// LendingVenues are in-process lending pools lending strategies can target.
	LendingVenues  []string `env:"LENDING_VENUES" envSeparator:"," envDefault:"pool"`
	LendingAsset   string   `env:"LENDING_ASSET" envDefault:"DAI"`
	LendingRateBps int64    `env:"LENDING_RATE_BPS" envDefault:"500"`

	Harvest  HarvestConfig            `envPrefix:"HARVEST_"`
	Exchange ExchangeConfig           `envPrefix:"EXCHANGE_"`
	Temporal temporalx.Config         `envPrefix:"TEMPORAL_"`
	Otel     observability.OtelConfig `envPrefix:"OTEL_"`

	MetricsEnabled        bool          `env:"METRICS_ENABLED" envDefault:"true"`
	MetricsScrapeInterval time.Duration `env:"METRICS_SCRAPE_INTERVAL" envDefault:"15s"`
}

type HarvestConfig struct {
	ToleranceAbs types.Amount `env:"YIELD_TOLERANCE_ABS" envDefault:"0"`
	ToleranceBps int64        `env:"YIELD_TOLERANCE_BPS" envDefault:"0"`
	// Identity is who the worker harvests as.
	Identity       string        `env:"IDENTITY" envDefault:"harvester"`
	SlippageBps    int64         `env:"SLIPPAGE_BPS" envDefault:"50"`
	DeadlineWindow time.Duration `env:"DEADLINE_WINDOW" envDefault:"10m"`
	Interval       time.Duration `env:"INTERVAL" envDefault:"1h"`
	// AutoSchedule starts a harvest workflow at boot for every vault whose
	// harvester is Identity.
	AutoSchedule bool `env:"AUTO_SCHEDULE" envDefault:"false"`
}

// ExchangeConfig selects the swap venue: a remote router when URL is set,
// otherwise a fixed-rate venue over the configured Rates.
type ExchangeConfig struct {
	Name       string        `env:"NAME" envDefault:"fixed"`
	URL        string        `env:"URL"`
	APIKey     string        `env:"API_KEY"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"2"`
	FeeBps     int64         `env:"FEE_BPS" envDefault:"30"`
	// Rates are BASE/QUOTE=NUM/DEN entries, e.g. DAI/WETH=1/2000.
	Rates []string `env:"RATES" envSeparator:"," envDefault:"DAI/WETH=1/2000"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.DatabaseURL) == "":
		return fmt.Errorf("DATABASE_URL is required")
	case len(c.Assets) == 0:
		return fmt.Errorf("ASSETS must list at least one token")
	case c.Harvest.ToleranceBps < 0 || c.Harvest.ToleranceBps > types.BpsDenominator:
		return fmt.Errorf("HARVEST_YIELD_TOLERANCE_BPS must be within 0..%d", types.BpsDenominator)
	case c.Harvest.ToleranceAbs.Sign() < 0:
		return fmt.Errorf("HARVEST_YIELD_TOLERANCE_ABS must not be negative")
	case c.Harvest.SlippageBps < 0 || c.Harvest.SlippageBps > types.BpsDenominator:
		return fmt.Errorf("HARVEST_SLIPPAGE_BPS must be within 0..%d", types.BpsDenominator)
	}
	return nil
}

// ExchangeRate is one parsed EXCHANGE_RATES entry.
type ExchangeRate struct {
	Base, Quote string
	Num, Den    types.Amount
}

func parseRates(entries []string) ([]ExchangeRate, error) {
	out := make([]ExchangeRate, 0, len(entries))
	for _, raw := range entries {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		pair, price, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("exchange rate %q: want BASE/QUOTE=NUM/DEN", raw)
		}
		base, quote, ok1 := strings.Cut(pair, "/")
		num, den, ok2 := strings.Cut(price, "/")
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("exchange rate %q: want BASE/QUOTE=NUM/DEN", raw)
		}
		n, err := types.ParseAmount(strings.TrimSpace(num))
		if err != nil {
			return nil, fmt.Errorf("exchange rate %q: %w", raw, err)
		}
		d, err := types.ParseAmount(strings.TrimSpace(den))
		if err != nil {
			return nil, fmt.Errorf("exchange rate %q: %w", raw, err)
		}
		out = append(out, ExchangeRate{
			Base:  strings.ToUpper(strings.TrimSpace(base)),
			Quote: strings.ToUpper(strings.TrimSpace(quote)),
			Num:   n,
			Den:   d,
		})
	}
	return out, nil
}
