package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-dispatch-queue/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// QueueSnapshotProvider provides current queue stats snapshots.
// *core.DispatchQueue satisfies it.
type QueueSnapshotProvider interface {
	Stats() core.QueueStats
}

// SnapshotPoller periodically exports queue Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	queuesMu sync.RWMutex
	queues   map[string]QueueSnapshotProvider

	pending       *prom.GaugeVec
	scheduled     *prom.GaugeVec
	running       *prom.GaugeVec
	executed      *prom.GaugeVec
	panicked      *prom.GaugeVec
	rejected      *prom.GaugeVec
	closed        *prom.GaugeVec
	lastTaskStamp *prom.GaugeVec

	stateMu     sync.Mutex
	pollRunning bool
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	pending := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_pending",
		Help:      "Items waiting in the work queue, by origin.",
	}, []string{"queue", "origin"})
	scheduled := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_scheduled_timers",
		Help:      "Timers in the timer heap that have not expired yet.",
	}, []string{"queue"})
	running := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_running",
		Help:      "Whether the worker is executing a batch (1=running, 0=idle).",
	}, []string{"queue"})
	executed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_executed_total",
		Help:      "Executed task count snapshot.",
	}, []string{"queue"})
	panicked := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_panicked_total",
		Help:      "Panicked task count snapshot.",
	}, []string{"queue"})
	rejected := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_rejected_total",
		Help:      "Rejected task count snapshot.",
	}, []string{"queue"})
	closed := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_closed",
		Help:      "Queue closed state (1=closed, 0=open).",
	}, []string{"queue"})
	lastTaskStamp := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: defaultNamespace,
		Name:      "queue_last_task_timestamp_seconds",
		Help:      "Unix time at which the most recent task finished.",
	}, []string{"queue"})

	var err error
	if pending, err = registerCollector(reg, pending); err != nil {
		return nil, err
	}
	if scheduled, err = registerCollector(reg, scheduled); err != nil {
		return nil, err
	}
	if running, err = registerCollector(reg, running); err != nil {
		return nil, err
	}
	if executed, err = registerCollector(reg, executed); err != nil {
		return nil, err
	}
	if panicked, err = registerCollector(reg, panicked); err != nil {
		return nil, err
	}
	if rejected, err = registerCollector(reg, rejected); err != nil {
		return nil, err
	}
	if closed, err = registerCollector(reg, closed); err != nil {
		return nil, err
	}
	if lastTaskStamp, err = registerCollector(reg, lastTaskStamp); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		queues:        make(map[string]QueueSnapshotProvider),
		pending:       pending,
		scheduled:     scheduled,
		running:       running,
		executed:      executed,
		panicked:      panicked,
		rejected:      rejected,
		closed:        closed,
		lastTaskStamp: lastTaskStamp,
	}, nil
}

// AddQueue adds or replaces a queue snapshot provider by name.
func (p *SnapshotPoller) AddQueue(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	p.queues[name] = provider
	p.queuesMu.Unlock()
}

// RemoveQueue stops polling name and drops its series.
func (p *SnapshotPoller) RemoveQueue(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	delete(p.queues, name)
	p.queuesMu.Unlock()

	labels := prom.Labels{"queue": name}
	p.pending.DeletePartialMatch(labels)
	for _, vec := range []*prom.GaugeVec{p.scheduled, p.running, p.executed, p.panicked, p.rejected, p.closed, p.lastTaskStamp} {
		vec.Delete(labels)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.pollRunning {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.pollRunning = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.pollRunning {
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
	p.pollRunning = false
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
	p.queuesMu.RLock()
	defer p.queuesMu.RUnlock()

	for name, provider := range p.queues {
		stats := provider.Stats()
		p.pending.WithLabelValues(name, core.OriginDispatch.String()).Set(float64(max(stats.Pending-stats.PendingTimers, 0)))
		p.pending.WithLabelValues(name, core.OriginTimer.String()).Set(float64(stats.PendingTimers))
		p.scheduled.WithLabelValues(name).Set(float64(stats.Scheduled))
		p.running.WithLabelValues(name).Set(boolGauge(stats.Running))
		p.executed.WithLabelValues(name).Set(float64(stats.Executed))
		p.panicked.WithLabelValues(name).Set(float64(stats.Panicked))
		p.rejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.closed.WithLabelValues(name).Set(boolGauge(stats.Closed))
		if !stats.LastTaskAt.IsZero() {
			p.lastTaskStamp.WithLabelValues(name).Set(float64(stats.LastTaskAt.UnixNano()) / 1e9)
		}
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
