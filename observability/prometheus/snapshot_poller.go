package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-vision-runner/core"
	"github.com/Swind/go-vision-runner/vision"
)

// RunnerSnapshotProvider provides current vision runner stats snapshots.
// *vision.TaskRunner and *stylizer.FaceStylizer satisfy it.
type RunnerSnapshotProvider interface {
	Stats() vision.Stats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports runner/pool Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	runnersMu sync.RWMutex
	runners   map[string]RunnerSnapshotProvider

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	runnerPending       *prom.GaugeVec
	runnerDelivered     *prom.GaugeVec
	runnerFailed        *prom.GaugeVec
	runnerRejected      *prom.GaugeVec
	runnerClosed        *prom.GaugeVec
	runnerLastTimestamp *prom.GaugeVec

	poolQueued  *prom.GaugeVec
	poolActive  *prom.GaugeVec
	poolWorkers *prom.GaugeVec
	poolRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	runnerGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"runner", "mode"})
	}
	poolGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"pool"})
	}

	p := &SnapshotPoller{
		interval:            interval,
		runners:             make(map[string]RunnerSnapshotProvider),
		pools:               make(map[string]PoolSnapshotProvider),
		runnerPending:       runnerGauge("runner_pending", "Live stream requests accepted but not yet delivered."),
		runnerDelivered:     runnerGauge("runner_delivered", "Runner delivered result count snapshot."),
		runnerFailed:        runnerGauge("runner_failed", "Runner failed live stream request count snapshot."),
		runnerRejected:      runnerGauge("runner_rejected", "Runner rejected request count snapshot."),
		runnerClosed:        runnerGauge("runner_closed", "Runner closed state (1=closed, 0=open)."),
		runnerLastTimestamp: runnerGauge("runner_last_timestamp_ms", "Last accepted input timestamp in milliseconds."),
		poolQueued:          poolGauge("pool_queued", "Queued tasks per pool."),
		poolActive:          poolGauge("pool_active", "Active tasks per pool."),
		poolWorkers:         poolGauge("pool_workers", "Worker count per pool."),
		poolRunning:         poolGauge("pool_running", "Pool running state (1=running, 0=stopped)."),
	}

	for _, gauge := range []**prom.GaugeVec{
		&p.runnerPending, &p.runnerDelivered, &p.runnerFailed, &p.runnerRejected,
		&p.runnerClosed, &p.runnerLastTimestamp,
		&p.poolQueued, &p.poolActive, &p.poolWorkers, &p.poolRunning,
	} {
		registered, err := registerCollector(reg, *gauge)
		if err != nil {
			return nil, err
		}
		*gauge = registered
	}
	return p, nil
}

// Interval returns how often snapshots are collected.
func (p *SnapshotPoller) Interval() time.Duration { return p.interval }

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runner")
	p.runnersMu.Lock()
	p.runners[name] = provider
	p.runnersMu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.runnersMu.RLock()
	for name, provider := range p.runners {
		stats := provider.Stats()
		mode := stats.Mode.String()
		p.runnerPending.WithLabelValues(name, mode).Set(float64(stats.Pending))
		p.runnerDelivered.WithLabelValues(name, mode).Set(float64(stats.Delivered))
		p.runnerFailed.WithLabelValues(name, mode).Set(float64(stats.Failed))
		p.runnerRejected.WithLabelValues(name, mode).Set(float64(stats.Rejected))
		p.runnerClosed.WithLabelValues(name, mode).Set(boolGauge(stats.Closed))
		if stats.HasTimestamp {
			p.runnerLastTimestamp.WithLabelValues(name, mode).Set(float64(stats.LastTimestampMs))
		}
	}
	p.runnersMu.RUnlock()

	p.poolsMu.RLock()
	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
	p.poolsMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
