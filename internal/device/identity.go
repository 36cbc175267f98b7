// Package device provides the per-installation device identity and the
// human-readable device label derived from client metadata.
package device

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Identity holds the stable per-installation device id. The id is persisted at
// a state file on first use; if the file cannot be read or written the id is
// kept in process memory only and regenerated on the next restart. Acquiring
// the id never fails.
type Identity struct {
	path string

	mu sync.Mutex
	id string
}

// NewIdentity returns an Identity backed by the state file at path.
// path may be empty; the id is then volatile for the process lifetime.
func NewIdentity(path string) *Identity {
	return &Identity{path: path}
}

// DeviceID returns the persisted device id, creating and persisting a new one
// if none exists yet. Storage failures fall back to a cached in-memory id.
func (i *Identity) DeviceID() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id
	}
	if i.path != "" {
		if raw, err := os.ReadFile(i.path); err == nil {
			if id := strings.TrimSpace(string(raw)); id != "" {
				i.id = id
				return i.id
			}
		}
	}
	i.id = uuid.New().String()
	if i.path != "" {
		if err := os.WriteFile(i.path, []byte(i.id+"\n"), 0o600); err != nil {
			// Volatile id for this process; not an error by contract.
			log.Printf("device: persisting id to %s failed, using volatile id: %v", i.path, err)
		}
	}
	return i.id
}
