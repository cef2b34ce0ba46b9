package agent

import (
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spuff-dev/spuff/internal/schema"
)

// BootstrapWatcher keeps the last-observed contents of
// /opt/spuff/bootstrap.status cached, refreshed by an fsnotify watch
// instead of a stat-on-every-request poll.
type BootstrapWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	cur      atomic.Value // schema.BootstrapStatus
	onChange func(schema.BootstrapStatus)
}

// NewBootstrapWatcher reads path once for an initial value, then starts
// watching it in the background. onChange, if non-nil, is invoked from the
// watch goroutine whenever the observed status changes. Callers must call
// Close when done.
func NewBootstrapWatcher(path string, onChange func(schema.BootstrapStatus)) (*BootstrapWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	bw := &BootstrapWatcher{path: path, watcher: w, onChange: onChange}
	bw.cur.Store(readBootstrapStatus(path))

	// Watch the parent directory rather than the file: the file may not
	// exist yet on a cold start, and every status write renames a new file
	// over the path, which would drop a watch held on the old one.
	if err := w.Add(parentDir(path)); err != nil {
		w.Close()
		return nil, err
	}

	go bw.loop()
	return bw, nil
}

func (bw *BootstrapWatcher) loop() {
	for {
		select {
		case event, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			if event.Name == bw.path || strings.HasSuffix(event.Name, "/bootstrap.status") {
				prev := bw.Current()
				next := readBootstrapStatus(bw.path)
				bw.cur.Store(next)
				if next != prev && bw.onChange != nil {
					bw.onChange(next)
				}
			}
		case _, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Current returns the last-observed bootstrap status without touching the
// filesystem.
func (bw *BootstrapWatcher) Current() schema.BootstrapStatus {
	if v, ok := bw.cur.Load().(schema.BootstrapStatus); ok {
		return v
	}
	return schema.BootstrapUnknown
}

// Close stops the underlying fsnotify watcher.
func (bw *BootstrapWatcher) Close() error { return bw.watcher.Close() }

func readBootstrapStatus(path string) schema.BootstrapStatus {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.BootstrapUnknown
	}
	switch strings.TrimSpace(string(data)) {
	case string(schema.BootstrapRunning):
		return schema.BootstrapRunning
	case string(schema.BootstrapReady):
		return schema.BootstrapReady
	case string(schema.BootstrapFailed):
		return schema.BootstrapFailed
	default:
		return schema.BootstrapUnknown
	}
}

func parentDir(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}
