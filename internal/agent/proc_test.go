package agent

import (
	"os"
	"testing"
)

func TestCpuPercentClampsToRange(t *testing.T) {
	cases := []struct {
		name     string
		prev, cur cpuTimes
		want     float64
	}{
		{"idle system", cpuTimes{idle: 100, total: 200}, cpuTimes{idle: 200, total: 300}, 0},
		{"fully busy", cpuTimes{idle: 0, total: 0}, cpuTimes{idle: 0, total: 100}, 100},
		{"half busy", cpuTimes{idle: 0, total: 0}, cpuTimes{idle: 50, total: 100}, 50},
		{"no delta", cpuTimes{idle: 10, total: 20}, cpuTimes{idle: 10, total: 20}, 0},
		{"idle delta above total delta", cpuTimes{idle: 0, total: 0}, cpuTimes{idle: 200, total: 100}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cpuPercent(tc.prev, tc.cur)
			if got != tc.want {
				t.Fatalf("cpuPercent(%v, %v) = %v, want %v", tc.prev, tc.cur, got, tc.want)
			}
		})
	}
}

func TestReadProcessStatSelf(t *testing.T) {
	sample, err := readProcessStat(os.Getpid())
	if err != nil {
		t.Skipf("cannot read /proc/%d/stat in this environment: %v", os.Getpid(), err)
	}
	if sample.name == "" {
		t.Fatalf("expected a non-empty process name")
	}
}

func TestReadCPUTimesAndMemInfo(t *testing.T) {
	if _, err := readCPUTimes(); err != nil {
		t.Skipf("cannot read /proc/stat in this environment: %v", err)
	}
	mi, err := readMemInfo()
	if err != nil {
		t.Skipf("cannot read /proc/meminfo in this environment: %v", err)
	}
	if mi.totalBytes == 0 {
		t.Fatalf("expected a non-zero MemTotal")
	}
}
