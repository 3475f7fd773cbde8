package lockfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestTryLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "job.lock")

	first, err := TryLock(path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file does not hold pid: %q", data)
	}

	if _, err := TryLock(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := first.Unlock(); err != nil {
		t.Errorf("second unlock should be a no-op: %v", err)
	}

	second, err := TryLock(path)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	second.Unlock()
}
