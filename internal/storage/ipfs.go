package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/rs/zerolog"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
)

// IPFSBackend is the primary content store, backed by a pin-service HTTP API
// for insert/search/unpin. Retrieval prefers a local IPFS node when one is
// configured and falls back to the public gateway.
type IPFSBackend struct {
	client     *resty.Client
	node       *shell.Shell
	gatewayURL string
	logger     zerolog.Logger
}

type IPFSOptions struct {
	ServiceURL   string
	ServiceToken string
	NodeAddr     string
	GatewayURL   string
}

func NewIPFSBackend(opts IPFSOptions, logger zerolog.Logger) *IPFSBackend {
	client := resty.New().
		SetBaseURL(opts.ServiceURL).
		SetAuthToken(opts.ServiceToken)

	var node *shell.Shell
	if opts.NodeAddr != "" {
		node = shell.NewShell(opts.NodeAddr)
	}

	return &IPFSBackend{
		client:     client,
		node:       node,
		gatewayURL: opts.GatewayURL,
		logger:     logger.With().Str("backend", NameIPFS).Logger(),
	}
}

func (b *IPFSBackend) Name() string { return NameIPFS }

type pinRequest struct {
	Content  json.RawMessage `json:"pinataContent"`
	Metadata pinMetadata     `json:"pinataMetadata"`
	Options  pinOptions      `json:"pinataOptions"`
}

type pinMetadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues,omitempty"`
}

type pinOptions struct {
	CIDVersion int `json:"cidVersion"`
}

type pinResponse struct {
	IPFSHash string `json:"IpfsHash"`
}

func (b *IPFSBackend) Insert(ctx context.Context, payload []byte, metadata map[string]string, pin bool) (*Artifact, error) {
	if !pin {
		// The pin service has no unpinned-add mode; an unpinned insert is
		// an add that the caller is expected to unpin on rollback.
		b.logger.Debug().Msg("insert without pin requested, pinning anyway")
	}

	req := pinRequest{
		Content:  json.RawMessage(payload),
		Metadata: pinMetadata{Name: metadata[MetaKeyName], KeyValues: metadata},
		Options:  pinOptions{CIDVersion: 1},
	}

	var out pinResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/pinning/pinJSONToIPFS")
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameIPFS, "insert", "error").Inc()
		return nil, fmt.Errorf("ipfs insert: %w", err)
	}
	if resp.IsError() {
		metrics.StorageOps.WithLabelValues(NameIPFS, "insert", "error").Inc()
		return nil, fmt.Errorf("ipfs insert: status %d: %s", resp.StatusCode(), resp.String())
	}

	metrics.StorageOps.WithLabelValues(NameIPFS, "insert", "ok").Inc()
	return &Artifact{
		ID:       out.IPFSHash,
		URL:      b.gatewayURL + "/" + out.IPFSHash,
		Metadata: metadata,
	}, nil
}

type pinListResponse struct {
	Rows []struct {
		IPFSPinHash string `json:"ipfs_pin_hash"`
		Metadata    struct {
			Name      string         `json:"name"`
			KeyValues map[string]any `json:"keyvalues"`
		} `json:"metadata"`
	} `json:"rows"`
}

func (b *IPFSBackend) Search(ctx context.Context, key, value string) ([]Artifact, error) {
	filter := fmt.Sprintf(`{"%s":{"value":"%s","op":"eq"}}`, key, value)

	var out pinListResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParam("status", "pinned").
		SetQueryParam("metadata[keyvalues]", filter).
		SetResult(&out).
		Get("/data/pinList")
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameIPFS, "search", "error").Inc()
		return nil, fmt.Errorf("ipfs search %s=%s: %w", key, value, err)
	}
	if resp.IsError() {
		metrics.StorageOps.WithLabelValues(NameIPFS, "search", "error").Inc()
		return nil, fmt.Errorf("ipfs search %s=%s: status %d", key, value, resp.StatusCode())
	}

	metrics.StorageOps.WithLabelValues(NameIPFS, "search", "ok").Inc()

	artifacts := make([]Artifact, 0, len(out.Rows))
	for _, row := range out.Rows {
		meta := make(map[string]string, len(row.Metadata.KeyValues))
		for k, v := range row.Metadata.KeyValues {
			meta[k] = fmt.Sprint(v)
		}
		artifacts = append(artifacts, Artifact{
			ID:       row.IPFSPinHash,
			URL:      b.gatewayURL + "/" + row.IPFSPinHash,
			Metadata: meta,
		})
	}
	return artifacts, nil
}

func (b *IPFSBackend) Retrieve(ctx context.Context, id string) ([]byte, error) {
	if b.node != nil {
		rc, err := b.node.Cat(id)
		if err == nil {
			defer rc.Close()
			payload, readErr := io.ReadAll(rc)
			if readErr == nil {
				metrics.StorageOps.WithLabelValues(NameIPFS, "retrieve", "ok").Inc()
				return payload, nil
			}
			err = readErr
		}
		b.logger.Debug().Err(err).Str("cid", id).Msg("node cat failed, falling back to gateway")
	}

	resp, err := b.client.R().SetContext(ctx).Get(b.gatewayURL + "/" + id)
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameIPFS, "retrieve", "error").Inc()
		return nil, fmt.Errorf("ipfs retrieve %s: %w", id, err)
	}
	if resp.IsError() {
		metrics.StorageOps.WithLabelValues(NameIPFS, "retrieve", "error").Inc()
		return nil, fmt.Errorf("ipfs retrieve %s: status %d", id, resp.StatusCode())
	}

	metrics.StorageOps.WithLabelValues(NameIPFS, "retrieve", "ok").Inc()
	return resp.Body(), nil
}

func (b *IPFSBackend) Unpin(ctx context.Context, ids []string) error {
	for _, id := range ids {
		resp, err := b.client.R().SetContext(ctx).Delete("/pinning/unpin/" + id)
		if err != nil {
			metrics.StorageOps.WithLabelValues(NameIPFS, "unpin", "error").Inc()
			return fmt.Errorf("ipfs unpin %s: %w", id, err)
		}
		if resp.IsError() {
			metrics.StorageOps.WithLabelValues(NameIPFS, "unpin", "error").Inc()
			return fmt.Errorf("ipfs unpin %s: status %d", id, resp.StatusCode())
		}
		metrics.StorageOps.WithLabelValues(NameIPFS, "unpin", "ok").Inc()
	}
	return nil
}
