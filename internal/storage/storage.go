// Package storage wraps each content-addressed network behind one Backend
// contract. Metadata is a flat string map on purpose: backend-side search
// filters by exact key/value match only, so nothing nested survives.
package storage

import "context"

// Backend name constants. The consistency controller relies on these to
// order writes (content store first, durable ledger second, archive third).
const (
	NameIPFS    = "ipfs"
	NameArweave = "arweave"
	NameArchive = "archive"
)

// MetaKeyName is the metadata key every tag record is indexed under.
const MetaKeyName = "tagName"

// Artifact is one stored copy of a payload on a backend.
type Artifact struct {
	ID       string            `json:"id"`
	URL      string            `json:"url,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Backend is the uniform contract over one storage network.
type Backend interface {
	Name() string
	Insert(ctx context.Context, payload []byte, metadata map[string]string, pin bool) (*Artifact, error)
	Search(ctx context.Context, key, value string) ([]Artifact, error)
	Retrieve(ctx context.Context, id string) ([]byte, error)
	Unpin(ctx context.Context, ids []string) error
}
