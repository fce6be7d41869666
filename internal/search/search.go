// Package search resolves a tag name across every storage backend a domain
// writes to, merging hits into one availability answer.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/pricing"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/storage"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// Query asks whether a label is taken within a domain. A non-empty
// Duration requests a quote for an available name; Referral shapes that
// quote. An empty Duration is a pure resolution lookup and never prices.
type Query struct {
	Label    string
	Domain   *model.DomainConfig
	Duration string
	Referral string
}

// Result is the merged answer across backends.
type Result struct {
	ByBackend map[string][]storage.Artifact
	Tag       *model.TagRecord
	Available bool
	Quote     *model.PriceQuote
}

// Service fans a lookup out to the enabled backends and merges the hits.
type Service struct {
	backends map[string]storage.Backend
	http     *resty.Client
	logger   zerolog.Logger
}

func NewService(backends map[string]storage.Backend, logger zerolog.Logger) *Service {
	return &Service{
		backends: backends,
		http:     resty.New(),
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// Enabled returns the backends a domain writes to, in write order:
// content store, durable ledger, archive.
func (s *Service) Enabled(cfg *model.DomainConfig) []storage.Backend {
	var out []storage.Backend
	if cfg.Backends.IPFS {
		if b, ok := s.backends[storage.NameIPFS]; ok {
			out = append(out, b)
		}
	}
	if cfg.Backends.Arweave {
		if b, ok := s.backends[storage.NameArweave]; ok {
			out = append(out, b)
		}
	}
	if cfg.Backends.Archive {
		if b, ok := s.backends[storage.NameArchive]; ok {
			out = append(out, b)
		}
	}
	return out
}

// SearchTag queries every enabled backend for both the bare name and its
// hold shadow, concurrently, and merges the results. A backend failure
// fails the whole search: availability must never be declared while a
// backend that might hold the name is unreachable.
func (s *Service) SearchTag(ctx context.Context, q Query) (*Result, error) {
	cfg := q.Domain
	fullName := cfg.FullName(q.Label)
	holdName := cfg.HoldName(q.Label)

	result := &Result{ByBackend: map[string][]storage.Artifact{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, backend := range s.Enabled(cfg) {
		for _, name := range []string{fullName, holdName} {
			backend, name := backend, name
			g.Go(func() error {
				artifacts, err := backend.Search(gctx, storage.MetaKeyName, name)
				if err != nil {
					return zelferr.ErrUpstream.WithCause(err)
				}
				mu.Lock()
				result.ByBackend[backend.Name()] = append(result.ByBackend[backend.Name()], artifacts...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	winner, backendName := pickWinner(result.ByBackend, fullName)
	if winner == nil {
		result.Available = true
		// A quote only makes sense on availability checks. Resolution
		// lookups pass no duration, and must answer for labels the
		// pricing table does not cover.
		if q.Duration != "" {
			quote, err := pricing.Price(cfg, q.Label, q.Duration, q.Referral)
			if err != nil {
				return nil, err
			}
			result.Quote = &quote
		}
		return result, nil
	}

	tag, err := s.loadRecord(ctx, backendName, *winner, cfg)
	if err != nil {
		return nil, err
	}

	// Attach every backend's copy of the winning name so lifecycle
	// mutations know exactly what to unpin. Stored payloads carry the
	// refs of the write before theirs, so the live search result wins.
	tag.Artifacts = nil
	winnerName := winner.Metadata[storage.MetaKeyName]
	for backend, artifacts := range result.ByBackend {
		for _, artifact := range artifacts {
			if artifact.Metadata[storage.MetaKeyName] == winnerName {
				tag.Artifacts = append(tag.Artifacts, model.StorageRef{
					Backend: backend, ID: artifact.ID, URL: artifact.URL,
				})
			}
		}
	}

	result.Tag = tag
	return result, nil
}

// Resolve returns the live record for a label or ErrTagNotFound.
func (s *Service) Resolve(ctx context.Context, cfg *model.DomainConfig, label string) (*model.TagRecord, error) {
	res, err := s.SearchTag(ctx, Query{Label: label, Domain: cfg})
	if err != nil {
		return nil, err
	}
	if res.Tag == nil {
		return nil, zelferr.ErrTagNotFound
	}
	return res.Tag, nil
}

// pickWinner applies the precedence rules: a bare-name (mainnet) hit beats
// a hold hit from any backend, and among equals the durable ledger beats
// the content store, which beats the archive.
func pickWinner(byBackend map[string][]storage.Artifact, fullName string) (*storage.Artifact, string) {
	order := []string{storage.NameArweave, storage.NameIPFS, storage.NameArchive}

	for _, want := range []bool{true, false} {
		for _, backend := range order {
			for i := range byBackend[backend] {
				artifact := &byBackend[backend][i]
				isMainnet := artifact.Metadata[storage.MetaKeyName] == fullName
				if isMainnet == want {
					return artifact, backend
				}
			}
		}
	}
	return nil, ""
}

func (s *Service) loadRecord(ctx context.Context, backendName string, artifact storage.Artifact, cfg *model.DomainConfig) (*model.TagRecord, error) {
	backend := s.backends[backendName]
	payload, err := backend.Retrieve(ctx, artifact.ID)
	if err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("retrieve %s from %s: %w", artifact.ID, backendName, err))
	}

	var tag model.TagRecord
	if err := json.Unmarshal(payload, &tag); err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("decode record %s: %w", artifact.ID, err))
	}

	if tag.Status == "" {
		tag.Status = model.TagStatusMainnet
		if artifact.Metadata[storage.MetaKeyName] == cfg.HoldName(tag.Label()) {
			tag.Status = model.TagStatusHold
		}
	}

	// Older records omit the sealed credential inline; recover it from the
	// artifact's public QR URL when possible. Strictly best-effort.
	if tag.SealedCredential == "" && artifact.URL != "" {
		if blob := s.recoverSealedCredential(ctx, artifact.URL); blob != "" {
			tag.SealedCredential = blob
		}
	}

	return &tag, nil
}

// recoverSealedCredential fetches the public artifact and pulls the sealed
// blob out of it. Any failure is logged and swallowed — recovery must never
// fail the search.
func (s *Service) recoverSealedCredential(ctx context.Context, url string) string {
	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil || resp.IsError() {
		s.logger.Debug().Err(err).Str("url", url).Msg("sealed credential recovery fetch failed")
		return ""
	}

	for _, field := range []string{"sealed_credential", "zelfProof"} {
		if v := gjson.GetBytes(resp.Body(), field); v.Exists() {
			return v.String()
		}
	}

	s.logger.Debug().Str("url", url).Msg("no sealed credential embedded in public artifact")
	return ""
}
