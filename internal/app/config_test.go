package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:cfgtest?mode=memory&cache=shared")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr: want=:8080 got=%s", cfg.HTTPAddr)
	}
	if cfg.Temporal.Enabled() {
		t.Fatalf("temporal should be disabled without TEMPORAL_ADDRESS")
	}
	if cfg.Temporal.TaskQueue != "yieldvault-harvest" {
		t.Fatalf("TaskQueue: got=%s", cfg.Temporal.TaskQueue)
	}
	if cfg.Harvest.DeadlineWindow != 10*time.Minute {
		t.Fatalf("DeadlineWindow: got=%s", cfg.Harvest.DeadlineWindow)
	}
	if len(cfg.Assets) != 2 || cfg.Assets[0] != "DAI" {
		t.Fatalf("Assets: got=%v", cfg.Assets)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HARVEST_YIELD_TOLERANCE_ABS", "25")
	t.Setenv("HARVEST_YIELD_TOLERANCE_BPS", "100")
	t.Setenv("TEMPORAL_ADDRESS", "localhost:7233")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("VAULT_ADMINS", "root,ops")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Harvest.ToleranceAbs.String() != "25" || cfg.Harvest.ToleranceBps != 100 {
		t.Fatalf("tolerance: got=%s/%d", cfg.Harvest.ToleranceAbs, cfg.Harvest.ToleranceBps)
	}
	if !cfg.Temporal.Enabled() || !cfg.Otel.Enabled {
		t.Fatalf("temporal and otel should be enabled")
	}
	if len(cfg.Admins) != 2 || cfg.Admins[1] != "ops" {
		t.Fatalf("Admins: got=%v", cfg.Admins)
	}
}

func TestLoadConfigRejectsBadTolerance(t *testing.T) {
	t.Setenv("HARVEST_YIELD_TOLERANCE_BPS", "20000")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for tolerance above 100%%")
	}
}

func TestParseRates(t *testing.T) {
	rates, err := parseRates([]string{"dai/weth=1/2000", " ", "WETH/DAI=2000/1"})
	if err != nil {
		t.Fatalf("parseRates: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("want 2 rates, got %d", len(rates))
	}
	if rates[0].Base != "DAI" || rates[0].Quote != "WETH" || rates[0].Den.String() != "2000" {
		t.Fatalf("unexpected rate: %+v", rates[0])
	}
	for _, bad := range []string{"DAI-WETH=1/2", "DAI/WETH=1", "DAI/WETH=x/2"} {
		if _, err := parseRates([]string{bad}); err == nil {
			t.Fatalf("parseRates(%q): expected error", bad)
		}
	}
}
