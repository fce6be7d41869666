package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// MemoryBackend is an in-process Backend used in tests and local
// development. IDs are content hashes, so it is content-addressed like the
// real networks: inserting the same payload twice yields the same ID.
type MemoryBackend struct {
	name string

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload  []byte
	metadata map[string]string
}

func NewMemoryBackend(name string) *MemoryBackend {
	return &MemoryBackend{
		name:    name,
		entries: map[string]memoryEntry{},
	}
}

func (b *MemoryBackend) Name() string { return b.name }

func (b *MemoryBackend) Insert(_ context.Context, payload []byte, metadata map[string]string, _ bool) (*Artifact, error) {
	sum := sha256.Sum256(payload)
	id := hex.EncodeToString(sum[:])[:32]

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	b.mu.Lock()
	b.entries[id] = memoryEntry{payload: append([]byte(nil), payload...), metadata: meta}
	b.mu.Unlock()

	return &Artifact{ID: id, URL: "memory://" + b.name + "/" + id, Metadata: meta}, nil
}

func (b *MemoryBackend) Search(_ context.Context, key, value string) ([]Artifact, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Artifact
	for id, entry := range b.entries {
		if entry.metadata[key] == value {
			out = append(out, Artifact{
				ID:       id,
				URL:      "memory://" + b.name + "/" + id,
				Metadata: entry.metadata,
			})
		}
	}
	return out, nil
}

func (b *MemoryBackend) Retrieve(_ context.Context, id string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[id]
	if !ok {
		return nil, fmt.Errorf("%s: no entry %s", b.name, id)
	}
	return append([]byte(nil), entry.payload...), nil
}

func (b *MemoryBackend) Unpin(_ context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range ids {
		delete(b.entries, id)
	}
	return nil
}

// Len reports how many artifacts the backend holds.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
