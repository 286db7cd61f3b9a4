package app

import (
	"context"
	"fmt"
	"strings"

	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/yieldvault-backend/internal/asset"
	"github.com/yungbote/yieldvault-backend/internal/events"
	"github.com/yungbote/yieldvault-backend/internal/exchange"
	"github.com/yungbote/yieldvault-backend/internal/exchange/routerhttp"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
	"github.com/yungbote/yieldvault-backend/internal/temporalx"
)

type Clients struct {
	Events   events.Bus
	Temporal temporalsdkclient.Client
	Exchange exchange.Venue
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, assets *asset.Registry) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	// Events
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		bus, err := events.NewRedisBus(log, cfg.RedisAddr, cfg.EventsChannel)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		c.Events = bus
	} else {
		c.Events = events.NewMemoryBus(log, cfg.EventsBuffer)
	}

	// Exchange
	venue, err := wireExchange(log, cfg.Exchange, assets)
	if err != nil {
		c.Close()
		return Clients{}, err
	}
	c.Exchange = venue

	// Temporal
	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	c.Temporal = tc
	return c, nil
}

func wireExchange(log *logger.Logger, cfg ExchangeConfig, assets *asset.Registry) (exchange.Venue, error) {
	if strings.TrimSpace(cfg.URL) != "" {
		client, err := routerhttp.New(routerhttp.Config{
			BaseURL:    cfg.URL,
			APIKey:     cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("init exchange router: %w", err)
		}
		log.Info("Exchange: remote router", "url", cfg.URL)
		return client, nil
	}

	rates, err := parseRates(cfg.Rates)
	if err != nil {
		return nil, err
	}
	venue := exchange.NewFixedRateVenue(cfg.Name, assets, cfg.FeeBps, nil)
	for _, r := range rates {
		if err := venue.SetRate(r.Base, r.Quote, exchange.Rate{Num: r.Num, Den: r.Den}); err != nil {
			return nil, err
		}
	}
	log.Info("Exchange: fixed-rate venue", "name", cfg.Name, "reserve_account", venue.Account(), "pairs", len(rates))
	return venue, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Events != nil {
		_ = c.Events.Close()
	}
}
