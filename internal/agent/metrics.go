package agent

import (
	"context"
	"sort"
	"time"

	"github.com/spuff-dev/spuff/internal/schema"
)

// sampleWindow is how far apart the two /proc samples a percentage
// computation needs are taken. Long enough to see real tick movement on a
// lightly loaded VM, short enough that a caller polling /metrics or
// /processes doesn't notice the latency.
const sampleWindow = 200 * time.Millisecond

// Collector gathers the JSON /metrics payload straight from /proc and
// statfs(2) — see proc.go's doc comment for why this is a direct parse
// rather than a wrapped dependency.
type Collector struct{}

// Sample blocks for sampleWindow to compute CPUPercent, then returns a
// complete MetricsResponse.
func (Collector) Sample(ctx context.Context) (schema.MetricsResponse, error) {
	before, err := readCPUTimes()
	if err != nil {
		return schema.MetricsResponse{}, err
	}

	select {
	case <-ctx.Done():
		return schema.MetricsResponse{}, ctx.Err()
	case <-time.After(sampleWindow):
	}

	after, err := readCPUTimes()
	if err != nil {
		return schema.MetricsResponse{}, err
	}

	mem, err := readMemInfo()
	if err != nil {
		return schema.MetricsResponse{}, err
	}
	load1, load5, load15, err := readLoadAvg()
	if err != nil {
		return schema.MetricsResponse{}, err
	}
	diskUsed, diskTotal, err := diskUsage("/")
	if err != nil {
		return schema.MetricsResponse{}, err
	}

	return schema.MetricsResponse{
		CPUPercent: cpuPercent(before, after),
		MemUsed:    mem.totalBytes - mem.availableBytes,
		MemTotal:   mem.totalBytes,
		DiskUsed:   diskUsed,
		DiskTotal:  diskTotal,
		Load1:      load1,
		Load5:      load5,
		Load15:     load15,
		Timestamp:  time.Now(),
	}, nil
}

// TopProcesses returns the n busiest processes by CPU over sampleWindow,
// backing the /processes endpoint.
func (Collector) TopProcesses(ctx context.Context, n int) ([]schema.ProcessInfo, error) {
	before, err := processTimes()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(sampleWindow):
	}

	after, err := processTimes()
	if err != nil {
		return nil, err
	}

	windowSecs := sampleWindow.Seconds()
	// Linux's USER_HZ is 100 on every platform spuff targets.
	const userHZ = 100.0

	infos := make([]schema.ProcessInfo, 0, len(after))
	for pid, cur := range after {
		prev, ok := before[pid]
		if !ok {
			continue // process started mid-window; no delta available
		}
		deltaTicks := float64(cur.ticks) - float64(prev.ticks)
		if deltaTicks < 0 {
			continue
		}
		pct := (deltaTicks / userHZ) / windowSecs * 100
		infos = append(infos, schema.ProcessInfo{PID: pid, Name: cur.name, CPUPercent: pct})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].CPUPercent > infos[j].CPUPercent })
	if len(infos) > n {
		infos = infos[:n]
	}
	return infos, nil
}
