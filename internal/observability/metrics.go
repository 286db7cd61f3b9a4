package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter

	vaultOps       *CounterVec
	vaultOpLatency *HistogramVec
	vaultAmount    *CounterVec
	compensations  *CounterVec

	harvests        *CounterVec
	harvestLatency  *HistogramVec
	harvestYield    *CounterVec
	harvestProceeds *CounterVec

	aggregateOps       *CounterVec
	aggregateLatency   *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	activityTime *HistogramVec
	workerTotal  *Counter
	workerError  *Counter

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init installs the process-wide registry. Returns nil when disabled; every
// Metrics method is nil-safe.
func Init(log *logger.Logger, enabled bool, scrapeInterval time.Duration) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New(scrapeInterval)
		if log != nil {
			log.Info("metrics initialized", "scrape_interval", instance.scrapeInterval.String())
		}
	})
	return instance
}

// New builds an unregistered Metrics value.
func New(scrapeInterval time.Duration) *Metrics {
	if scrapeInterval <= 0 {
		scrapeInterval = 10 * time.Second
	}
	latency := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	return &Metrics{
		apiRequests: NewCounterVec("yv_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"yv_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("yv_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("yv_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("yv_api_requests_error_total", "Total API requests answered with 5xx."),

		vaultOps:       NewCounterVec("yv_vault_operations_total", "Vault operations by op/status.", []string{"op", "status"}),
		vaultOpLatency: NewHistogramVec("yv_vault_operation_duration_seconds", "Vault operation latency by op/status.", []string{"op", "status"}, latency),
		vaultAmount:    NewCounterVec("yv_vault_amount_total", "Token units moved by vault operations.", []string{"op", "asset"}),
		compensations:  NewCounterVec("yv_vault_compensations_total", "Compensating actions by op/status.", []string{"op", "status"}),

		harvests:        NewCounterVec("yv_harvests_total", "Harvest attempts by outcome.", []string{"status"}),
		harvestLatency:  NewHistogramVec("yv_harvest_duration_seconds", "Harvest latency by outcome.", []string{"status"}, latency),
		harvestYield:    NewCounterVec("yv_harvest_yield_total", "Principal-asset yield realized by harvests.", []string{"asset"}),
		harvestProceeds: NewCounterVec("yv_harvest_proceeds_total", "Distribution-asset proceeds recorded by harvests.", []string{"asset"}),

		aggregateOps:       NewCounterVec("yv_aggregate_operations_total", "Aggregate write operations by name/status.", []string{"aggregate", "status"}),
		aggregateLatency:   NewHistogramVec("yv_aggregate_operation_duration_seconds", "Aggregate write latency by name/status.", []string{"aggregate", "status"}, latency),
		aggregateConflicts: NewCounterVec("yv_aggregate_conflicts_total", "Aggregate optimistic-concurrency conflicts.", []string{"aggregate"}),
		aggregateRetries:   NewCounterVec("yv_aggregate_retries_total", "Aggregate retryable failures.", []string{"aggregate"}),

		activityTime: NewHistogramVec("yv_worker_activity_duration_seconds", "Worker activity latency by activity/status.", []string{"activity", "status"}, latency),
		workerTotal:  NewCounter("yv_worker_activities_total", "Worker activities executed."),
		workerError:  NewCounter("yv_worker_activities_error_total", "Worker activities that failed."),

		pgStats:   NewGaugeVec("yv_db_pool", "Database pool stats.", []string{"stat"}),
		redisUp:   NewGauge("yv_redis_up", "Redis reachability (1 up, 0 down)."),
		redisPing: NewGauge("yv_redis_ping_seconds", "Redis ping latency."),

		scrapeInterval: scrapeInterval,
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.vaultOps, m.vaultOpLatency, m.vaultAmount, m.compensations,
		m.harvests, m.harvestLatency, m.harvestYield, m.harvestProceeds,
		m.aggregateOps, m.aggregateLatency, m.aggregateConflicts, m.aggregateRetries,
		m.activityTime, m.workerTotal, m.workerError,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, c := range all {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveVaultOperation records one vault entry point. status is "ok" or an
// error code.
func (m *Metrics) ObserveVaultOperation(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	op = nonEmpty(op, "unknown")
	status = nonEmpty(status, "unknown")
	m.vaultOps.Inc(op, status)
	m.vaultOpLatency.Observe(dur.Seconds(), op, status)
}

// AddVaultAmount accumulates token units. Amounts beyond float64 precision are
// approximate here; the ledger is authoritative.
func (m *Metrics) AddVaultAmount(op, asset string, units float64) {
	if m == nil || units <= 0 {
		return
	}
	m.vaultAmount.Add(units, nonEmpty(op, "unknown"), nonEmpty(asset, "unknown"))
}

func (m *Metrics) IncCompensation(op, status string) {
	if m == nil {
		return
	}
	m.compensations.Inc(nonEmpty(op, "unknown"), nonEmpty(status, "unknown"))
}

func (m *Metrics) ObserveHarvest(status string, dur time.Duration) {
	if m == nil {
		return
	}
	status = nonEmpty(status, "unknown")
	m.harvests.Inc(status)
	m.harvestLatency.Observe(dur.Seconds(), status)
}

func (m *Metrics) AddHarvestYield(asset string, units float64) {
	if m == nil || units <= 0 {
		return
	}
	m.harvestYield.Add(units, nonEmpty(asset, "unknown"))
}

func (m *Metrics) AddHarvestProceeds(asset string, units float64) {
	if m == nil || units <= 0 {
		return
	}
	m.harvestProceeds.Add(units, nonEmpty(asset, "unknown"))
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	name = nonEmpty(name, "unknown")
	status = nonEmpty(status, "unknown")
	m.aggregateOps.Inc(name, status)
	m.aggregateLatency.Observe(dur.Seconds(), name, status)
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(nonEmpty(name, "unknown"))
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(nonEmpty(name, "unknown"))
}

func (m *Metrics) ObserveActivity(activityName, status string, dur time.Duration) {
	if m == nil {
		return
	}
	activityName = nonEmpty(activityName, "unknown")
	status = nonEmpty(status, "unknown")
	m.activityTime.Observe(dur.Seconds(), activityName, status)
	m.workerTotal.Inc()
	if status != "ok" && status != "succeeded" {
		m.workerError.Inc()
	}
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := m.scrapeInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := m.scrapeInterval
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func nonEmpty(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}
