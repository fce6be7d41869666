package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
)

// ArweaveBackend is the durable ledger. Inserts go through a bundler node,
// search runs a GraphQL tag query against the gateway, and Unpin is a no-op
// because the ledger is permanent.
type ArweaveBackend struct {
	bundler *resty.Client
	gateway *resty.Client
	logger  zerolog.Logger
}

type ArweaveOptions struct {
	GatewayURL   string
	BundlerURL   string
	BundlerToken string
}

func NewArweaveBackend(opts ArweaveOptions, logger zerolog.Logger) *ArweaveBackend {
	bundler := resty.New().SetBaseURL(opts.BundlerURL)
	if opts.BundlerToken != "" {
		bundler.SetAuthToken(opts.BundlerToken)
	}

	return &ArweaveBackend{
		bundler: bundler,
		gateway: resty.New().SetBaseURL(opts.GatewayURL),
		logger:  logger.With().Str("backend", NameArweave).Logger(),
	}
}

func (b *ArweaveBackend) Name() string { return NameArweave }

type bundleTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (b *ArweaveBackend) Insert(ctx context.Context, payload []byte, metadata map[string]string, _ bool) (*Artifact, error) {
	tags := make([]bundleTag, 0, len(metadata)+1)
	tags = append(tags, bundleTag{Name: "Content-Type", Value: "application/json"})
	for k, v := range metadata {
		tags = append(tags, bundleTag{Name: k, Value: v})
	}

	resp, err := b.bundler.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetQueryParam("tags", encodeTags(tags)).
		SetBody(payload).
		Post("/tx")
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameArweave, "insert", "error").Inc()
		return nil, fmt.Errorf("arweave insert: %w", err)
	}
	if resp.IsError() {
		metrics.StorageOps.WithLabelValues(NameArweave, "insert", "error").Inc()
		return nil, fmt.Errorf("arweave insert: status %d: %s", resp.StatusCode(), resp.String())
	}

	id := gjson.GetBytes(resp.Body(), "id").String()
	if id == "" {
		metrics.StorageOps.WithLabelValues(NameArweave, "insert", "error").Inc()
		return nil, fmt.Errorf("arweave insert: bundler response missing tx id")
	}

	metrics.StorageOps.WithLabelValues(NameArweave, "insert", "ok").Inc()
	return &Artifact{
		ID:       id,
		URL:      strings.TrimSuffix(b.gateway.BaseURL, "/") + "/" + id,
		Metadata: metadata,
	}, nil
}

const searchQuery = `query($name: String!, $values: [String!]!) {
  transactions(tags: [{name: $name, values: $values}], first: 10, sort: HEIGHT_DESC) {
    edges {
      node {
        id
        tags { name value }
      }
    }
  }
}`

func (b *ArweaveBackend) Search(ctx context.Context, key, value string) ([]Artifact, error) {
	resp, err := b.gateway.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"query": searchQuery,
			"variables": map[string]any{
				"name":   key,
				"values": []string{value},
			},
		}).
		Post("/graphql")
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameArweave, "search", "error").Inc()
		return nil, fmt.Errorf("arweave search %s=%s: %w", key, value, err)
	}
	if resp.IsError() {
		metrics.StorageOps.WithLabelValues(NameArweave, "search", "error").Inc()
		return nil, fmt.Errorf("arweave search %s=%s: status %d", key, value, resp.StatusCode())
	}

	metrics.StorageOps.WithLabelValues(NameArweave, "search", "ok").Inc()

	var artifacts []Artifact
	edges := gjson.GetBytes(resp.Body(), "data.transactions.edges")
	edges.ForEach(func(_, edge gjson.Result) bool {
		node := edge.Get("node")
		meta := map[string]string{}
		node.Get("tags").ForEach(func(_, tag gjson.Result) bool {
			meta[tag.Get("name").String()] = tag.Get("value").String()
			return true
		})
		artifacts = append(artifacts, Artifact{
			ID:       node.Get("id").String(),
			URL:      strings.TrimSuffix(b.gateway.BaseURL, "/") + "/" + node.Get("id").String(),
			Metadata: meta,
		})
		return true
	})
	return artifacts, nil
}

func (b *ArweaveBackend) Retrieve(ctx context.Context, id string) ([]byte, error) {
	resp, err := b.gateway.R().SetContext(ctx).Get("/" + id)
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameArweave, "retrieve", "error").Inc()
		return nil, fmt.Errorf("arweave retrieve %s: %w", id, err)
	}
	if resp.IsError() {
		metrics.StorageOps.WithLabelValues(NameArweave, "retrieve", "error").Inc()
		return nil, fmt.Errorf("arweave retrieve %s: status %d", id, resp.StatusCode())
	}
	metrics.StorageOps.WithLabelValues(NameArweave, "retrieve", "ok").Inc()
	return resp.Body(), nil
}

// Unpin is a no-op: the ledger is append-only and permanent. Old records
// stop resolving once superseded entries carry a newer block height.
func (b *ArweaveBackend) Unpin(_ context.Context, ids []string) error {
	b.logger.Debug().Strs("ids", ids).Msg("unpin ignored on permanent ledger")
	return nil
}

func encodeTags(tags []bundleTag) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, t.Name+"="+t.Value)
	}
	return strings.Join(parts, ",")
}
