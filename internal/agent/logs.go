package agent

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrLogOutsideWhitelist is returned when the requested file resolves
// outside /var/log, including via a ".." traversal attempt.
var ErrLogOutsideWhitelist = errors.New("requested file is outside the whitelisted log directory")

var logWhitelistRoot = "/var/log"

// TailFile returns the last n lines of file, which must resolve under
// /var/log/. A naive line-by-line scan is sufficient here: agent log files
// are small and this endpoint is operator-facing, not a hot path.
func TailFile(file string, n int) ([]string, error) {
	clean := filepath.Clean(file)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(logWhitelistRoot, clean)
	}
	rel, err := filepath.Rel(logWhitelistRoot, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, ErrLogOutsideWhitelist
	}

	f, err := os.Open(clean)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
