package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// =============================================================================
// Cross-process File Lock
// =============================================================================

// DefaultPollInterval is how often a contended file lock is retried.
const DefaultPollInterval = 100 * time.Millisecond

// FileLocker serializes keys across processes on one host with flock(2)
// advisory locks on files under Dir.
type FileLocker struct {
	Dir          string
	PollInterval time.Duration
}

// NewFileLocker creates a FileLocker, creating dir if needed.
func NewFileLocker(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	return &FileLocker{Dir: dir, PollInterval: DefaultPollInterval}, nil
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_")

// Path returns the lock file used for key.
func (f *FileLocker) Path(key string) string {
	return filepath.Join(f.Dir, keyReplacer.Replace(key)+".lock")
}

// Lock blocks until the lock file for key is held or ctx is done.
func (f *FileLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	file, err := os.OpenFile(f.Path(key), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	interval := f.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			file.Close()
			return nil, fmt.Errorf("flock %s: %w", file.Name(), err)
		}

		select {
		case <-ctx.Done():
			file.Close()
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}
