package device

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestDeviceID_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-id")
	ident := NewIdentity(path)

	first := ident.DeviceID()
	if first == "" {
		t.Fatal("DeviceID should never be empty")
	}
	second := ident.DeviceID()
	if second != first {
		t.Errorf("second DeviceID = %q, want %q", second, first)
	}

	// A fresh Identity over the same file must load the same id.
	reloaded := NewIdentity(path).DeviceID()
	if reloaded != first {
		t.Errorf("reloaded DeviceID = %q, want %q", reloaded, first)
	}
}

func TestDeviceID_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device-id")
	id := NewIdentity(path).DeviceID()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("state file should exist: %v", err)
	}
	if got := string(raw); got != id+"\n" {
		t.Errorf("state file = %q, want %q", got, id+"\n")
	}
}

func TestDeviceID_VolatileFallbackWhenUnwritable(t *testing.T) {
	// Point the state file at a directory that does not exist so both read and
	// write fail; the id must still be stable within the process.
	path := filepath.Join(t.TempDir(), "missing", "nested", "device-id")
	ident := NewIdentity(path)

	first := ident.DeviceID()
	if first == "" {
		t.Fatal("DeviceID should never be empty even without storage")
	}
	if second := ident.DeviceID(); second != first {
		t.Errorf("volatile id changed within process: %q then %q", first, second)
	}
}

func TestDeviceID_EmptyPath(t *testing.T) {
	ident := NewIdentity("")
	first := ident.DeviceID()
	if first == "" {
		t.Fatal("DeviceID should never be empty")
	}
	if second := ident.DeviceID(); second != first {
		t.Errorf("id changed within process: %q then %q", first, second)
	}
}

func TestDeviceID_ConcurrentAccess(t *testing.T) {
	ident := NewIdentity(filepath.Join(t.TempDir(), "device-id"))

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids[n] = ident.DeviceID()
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent DeviceID calls disagree: %q vs %q", ids[i], ids[0])
		}
	}
}
