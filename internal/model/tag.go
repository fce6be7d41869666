package model

import (
	"strings"
	"time"
)

// StorageRef identifies one stored copy of a tag record.
type StorageRef struct {
	Backend string `json:"backend"`
	ID      string `json:"id"`
	URL     string `json:"url,omitempty"`
}

// TagRecord is the persisted unit: one leased name bound to a sealed
// credential and a bundle of chain addresses. Records are never updated in
// place — every mutation produces a new artifact on each backend.
type TagRecord struct {
	Name             string            `json:"name"`
	Domain           string            `json:"domain"`
	Status           string            `json:"status"`
	SealedCredential string            `json:"sealed_credential,omitempty"`
	Addresses        map[string]string `json:"addresses,omitempty"`
	Origin           string            `json:"origin"`
	Price            float64           `json:"price"`
	Duration         string            `json:"duration"`
	Referrer         string            `json:"referrer,omitempty"`
	ReferrerAddress  string            `json:"referrer_address,omitempty"`
	RegisteredAt     time.Time         `json:"registered_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	Artifacts        []StorageRef      `json:"artifacts,omitempty"`
}

// Label returns the bare label without hold suffix or domain,
// e.g. "alice.hold.avax" -> "alice".
func (t *TagRecord) Label() string {
	name := strings.TrimSuffix(t.Name, "."+t.Domain)
	if i := strings.Index(name, "."); i >= 0 {
		name = name[:i]
	}
	return name
}

// IsHold reports whether the record is a payment-pending reservation.
func (t *TagRecord) IsHold() bool {
	return t.Status == TagStatusHold
}

// Expired reports whether the record has lapsed at the given instant.
func (t *TagRecord) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// ArtifactFor returns the storage reference held on a given backend.
func (t *TagRecord) ArtifactFor(backend string) (StorageRef, bool) {
	for _, ref := range t.Artifacts {
		if ref.Backend == backend {
			return ref, true
		}
	}
	return StorageRef{}, false
}
