// Package consistency sequences every multi-backend mutation of a tag
// record. There is no cross-backend transaction: the write is a saga with
// one committed step (the primary content store) and best-effort steps for
// every other backend. Unpin failures and secondary insert failures are
// logged and swallowed — that asymmetry is the documented guarantee, not a
// bug to fix here.
package consistency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/storage"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

type Controller struct {
	logger zerolog.Logger
}

func NewController(logger zerolog.Logger) *Controller {
	return &Controller{logger: logger.With().Str("component", "consistency").Logger()}
}

// WriteResult reports what one saga accomplished.
type WriteResult struct {
	Committed        bool
	Artifacts        []model.StorageRef
	BestEffortErrors map[string]error
}

// Replace writes rec to every backend, removing the old artifacts first.
// backends must be in write order: the first entry is the primary and its
// insert decides success; the rest are best-effort. old may be nil for a
// first write.
func (c *Controller) Replace(ctx context.Context, backends []storage.Backend, rec *model.TagRecord, old []model.StorageRef) (*WriteResult, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("replace %s: no backends enabled", rec.Name)
	}

	c.unpinOld(ctx, backends, old)

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.Name, err)
	}
	meta := RecordMetadata(rec)

	result := &WriteResult{BestEffortErrors: map[string]error{}}

	primary := backends[0]
	artifact, err := primary.Insert(ctx, payload, meta, true)
	if err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("primary insert on %s: %w", primary.Name(), err))
	}
	result.Committed = true
	result.Artifacts = append(result.Artifacts, model.StorageRef{
		Backend: primary.Name(), ID: artifact.ID, URL: artifact.URL,
	})

	for _, backend := range backends[1:] {
		artifact, err := backend.Insert(ctx, payload, meta, true)
		if err != nil {
			metrics.BestEffortFailures.WithLabelValues(backend.Name()).Inc()
			result.BestEffortErrors[backend.Name()] = err
			c.logger.Warn().Err(err).
				Str("backend", backend.Name()).
				Str("name", rec.Name).
				Msg("best-effort insert failed after primary commit")
			continue
		}
		result.Artifacts = append(result.Artifacts, model.StorageRef{
			Backend: backend.Name(), ID: artifact.ID, URL: artifact.URL,
		})
	}

	rec.Artifacts = result.Artifacts
	return result, nil
}

// Remove unpins every artifact of a record from its backend. Used for
// explicit deletion and for clearing a hold after promotion.
func (c *Controller) Remove(ctx context.Context, backends []storage.Backend, refs []model.StorageRef) error {
	byName := map[string]storage.Backend{}
	for _, b := range backends {
		byName[b.Name()] = b
	}

	var firstErr error
	for _, ref := range refs {
		backend, ok := byName[ref.Backend]
		if !ok {
			continue
		}
		if err := backend.Unpin(ctx, []string{ref.ID}); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unpin %s from %s: %w", ref.ID, ref.Backend, err)
		}
	}
	return firstErr
}

// unpinOld deletes superseded artifacts. Failures leave a briefly
// resolvable stale copy, which is an accepted staleness window.
func (c *Controller) unpinOld(ctx context.Context, backends []storage.Backend, old []model.StorageRef) {
	if len(old) == 0 {
		return
	}

	byName := map[string]storage.Backend{}
	for _, b := range backends {
		byName[b.Name()] = b
	}

	for _, ref := range old {
		backend, ok := byName[ref.Backend]
		if !ok {
			continue
		}
		if err := backend.Unpin(ctx, []string{ref.ID}); err != nil {
			c.logger.Warn().Err(err).
				Str("backend", ref.Backend).
				Str("id", ref.ID).
				Msg("unpin of superseded artifact failed, stale copy may linger")
		}
	}
}

// RecordMetadata flattens the record into the string-keyed map backends
// index on. Values must stay flat strings: backend search is exact
// key/value match only.
func RecordMetadata(rec *model.TagRecord) map[string]string {
	meta := map[string]string{
		storage.MetaKeyName: rec.Name,
		"domain":            rec.Domain,
		"tagStatus":         rec.Status,
		"origin":            rec.Origin,
		"expiresAt":         rec.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if rec.Referrer != "" {
		meta["referrer"] = rec.Referrer
	}
	for chain, addr := range rec.Addresses {
		meta[chain+"Address"] = addr
	}
	return meta
}
