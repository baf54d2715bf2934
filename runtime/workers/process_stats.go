package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"problem-map/contract"

	"github.com/shirou/gopsutil/process"
)

// Gauge is a value sampled on every tick, such as a store size or a queue length.
type Gauge struct {
	Name  string
	Value func() int64
}

var _ contract.Worker = (*ProcessStatsWorker)(nil)

// ProcessStatsWorker periodically logs the process health (memory, CPU, OS status)
// along with the registered gauges. Reading gauges never blocks the components.
type ProcessStatsWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	gauges         []Gauge
}

func NewProcessStatsWorker(log *slog.Logger, metricInterval time.Duration, gauges ...Gauge) *ProcessStatsWorker {
	return &ProcessStatsWorker{log: log, metricInterval: metricInterval, gauges: gauges}
}

func (w *ProcessStatsWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *ProcessStatsWorker) report(p *process.Process) {
	attrs := []any{"goroutines", runtime.NumGoroutine()}
	rss, cpu, status, err := getSelfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu, "status", status)
	}
	for _, g := range w.gauges {
		attrs = append(attrs, g.Name, g.Value())
	}
	w.log.Info("Process stats", attrs...)
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
