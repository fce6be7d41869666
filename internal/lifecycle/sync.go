package lifecycle

import (
	"context"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/model"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/sealer"
	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// SyncRequest reconciles an offline-created record once its owner is back
// online. Face and Password re-prove ownership against the stored
// credential before anything merges.
type SyncRequest struct {
	Domain    string
	Label     string
	Face      string
	Password  string
	Addresses map[string]string
}

// Sync merges address fields into an offline-origin record after the
// sealing collaborator re-opens its credential. Only addresses the record
// does not already carry are added; nothing is ever overwritten.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*model.TagRecord, error) {
	cfg, err := s.activeDomain(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	rec, err := s.search.Resolve(ctx, cfg, req.Label)
	if err != nil {
		return nil, err
	}
	if rec.Origin != model.OriginOffline {
		// Online records were sealed in-session; there is nothing to
		// reconcile.
		return rec, nil
	}

	if err := s.proveOwnership(ctx, rec, req.Face, req.Password); err != nil {
		return nil, err
	}

	synced := *rec
	synced.Addresses = map[string]string{}
	for chain, addr := range rec.Addresses {
		synced.Addresses[chain] = addr
	}
	for chain, addr := range req.Addresses {
		if _, ok := synced.Addresses[chain]; ok {
			continue
		}
		synced.Addresses[chain] = addr
	}
	synced.Origin = model.OriginOnline

	synced.Artifacts = nil
	if _, err := s.writer.Replace(ctx, s.search.Enabled(cfg), &synced, rec.Artifacts); err != nil {
		return nil, err
	}

	s.logger.Info().Str("name", synced.Name).Msg("offline record synced")
	return &synced, nil
}

// DeleteRequest asks to unpin a record everywhere. Irreversible.
type DeleteRequest struct {
	Domain   string
	Label    string
	Face     string
	Password string
}

// Delete re-proves ownership and unpins the record from every backend.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) error {
	cfg, err := s.activeDomain(ctx, req.Domain)
	if err != nil {
		return err
	}

	rec, err := s.search.Resolve(ctx, cfg, req.Label)
	if err != nil {
		return err
	}

	if err := s.proveOwnership(ctx, rec, req.Face, req.Password); err != nil {
		return err
	}

	if err := s.writer.Remove(ctx, s.search.Enabled(cfg), rec.Artifacts); err != nil {
		return zelferr.ErrUpstream.WithCause(err)
	}

	s.logger.Info().Str("name", rec.Name).Msg("tag deleted")
	return nil
}

// proveOwnership opens the stored credential with the caller's proof. The
// failure is always the coarse verification error: which check failed is
// never revealed.
func (s *Service) proveOwnership(ctx context.Context, rec *model.TagRecord, face, password string) error {
	if rec.SealedCredential == "" {
		return zelferr.ErrVerificationFailed
	}
	_, err := s.sealer.Open(ctx, sealer.OpenRequest{
		SealedBlob: rec.SealedCredential,
		Face:       face,
		Password:   password,
	})
	if err != nil {
		return zelferr.ErrVerificationFailed.WithCause(err)
	}
	return nil
}
