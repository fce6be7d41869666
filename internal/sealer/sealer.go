// Package sealer is the client side of the biometric sealing service. The
// cryptography lives entirely on the remote side; this package only moves
// opaque blobs.
package sealer

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/zelferr"
)

// SealRequest binds a payload to a face + optional password proof.
type SealRequest struct {
	Payload   map[string]string `json:"payload"`
	Face      string            `json:"face"`
	Password  string            `json:"password,omitempty"`
	Tolerance string            `json:"tolerance,omitempty"`
}

// OpenRequest asks the service to open a sealed blob.
type OpenRequest struct {
	SealedBlob string `json:"sealed_blob"`
	Face       string `json:"face"`
	Password   string `json:"password,omitempty"`
}

// OpenResult is the recovered payload plus service metadata.
type OpenResult struct {
	Payload  map[string]string `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PreviewResult exposes only the public fields of a sealed blob.
type PreviewResult struct {
	PublicFields map[string]string `json:"public_fields"`
	PasswordSet  bool              `json:"password_set"`
}

// Client is the sealing collaborator contract.
type Client interface {
	Seal(ctx context.Context, req SealRequest) (string, error)
	Open(ctx context.Context, req OpenRequest) (*OpenResult, error)
	Preview(ctx context.Context, sealedBlob string) (*PreviewResult, error)
}

// HTTPClient talks to the hosted sealing service.
type HTTPClient struct {
	client *resty.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	client := resty.New().SetBaseURL(baseURL)
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPClient{client: client}
}

func (c *HTTPClient) Seal(ctx context.Context, req SealRequest) (string, error) {
	var out struct {
		SealedBlob string `json:"sealed_blob"`
	}
	resp, err := c.client.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/seal")
	if err != nil {
		return "", zelferr.ErrUpstream.WithCause(fmt.Errorf("seal: %w", err))
	}
	if resp.IsError() {
		// Never relay which check the service rejected.
		return "", zelferr.ErrVerificationFailed
	}
	return out.SealedBlob, nil
}

func (c *HTTPClient) Open(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	var out OpenResult
	resp, err := c.client.R().SetContext(ctx).SetBody(req).SetResult(&out).Post("/open")
	if err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("open: %w", err))
	}
	if resp.IsError() {
		return nil, zelferr.ErrVerificationFailed
	}
	return &out, nil
}

func (c *HTTPClient) Preview(ctx context.Context, sealedBlob string) (*PreviewResult, error) {
	var out PreviewResult
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"sealed_blob": sealedBlob}).
		SetResult(&out).
		Post("/preview")
	if err != nil {
		return nil, zelferr.ErrUpstream.WithCause(fmt.Errorf("preview: %w", err))
	}
	if resp.IsError() {
		return nil, zelferr.ErrVerificationFailed
	}
	return &out, nil
}
