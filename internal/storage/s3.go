package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/Open-Verifik/zelf-online-version-sub000/internal/metrics"
)

// s3API is the slice of the S3 client the archive backend uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// ArchiveBackend is the optional tertiary store: an S3-compatible bucket
// keyed by content hash with tag metadata on the object. Search lists the
// bucket and filters by metadata, which is acceptable for a best-effort
// backend that is never authoritative.
type ArchiveBackend struct {
	client   s3API
	bucket   string
	endpoint string
	logger   zerolog.Logger
}

type ArchiveOptions struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

func NewArchiveBackend(opts ArchiveOptions, logger zerolog.Logger) *ArchiveBackend {
	client := s3.New(s3.Options{
		Region:       opts.Region,
		BaseEndpoint: aws.String(opts.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
	})

	return &ArchiveBackend{
		client:   client,
		bucket:   opts.Bucket,
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		logger:   logger.With().Str("backend", NameArchive).Logger(),
	}
}

func (b *ArchiveBackend) Name() string { return NameArchive }

func (b *ArchiveBackend) Insert(ctx context.Context, payload []byte, metadata map[string]string, _ bool) (*Artifact, error) {
	sum := sha256.Sum256(payload)
	key := hex.EncodeToString(sum[:])

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata:    metadata,
	})
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameArchive, "insert", "error").Inc()
		return nil, fmt.Errorf("archive insert: %w", err)
	}

	metrics.StorageOps.WithLabelValues(NameArchive, "insert", "ok").Inc()
	return &Artifact{
		ID:       key,
		URL:      b.endpoint + "/" + b.bucket + "/" + key,
		Metadata: metadata,
	}, nil
}

func (b *ArchiveBackend) Search(ctx context.Context, key, value string) ([]Artifact, error) {
	// The SDK lower-cases user metadata keys on Head/Get responses, so
	// "tagName" comes back as "tagname".
	lowerKey := strings.ToLower(key)

	var artifacts []Artifact
	var token *string

	for {
		page, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			ContinuationToken: token,
		})
		if err != nil {
			metrics.StorageOps.WithLabelValues(NameArchive, "search", "error").Inc()
			return nil, fmt.Errorf("archive search %s=%s: %w", key, value, err)
		}

		for _, obj := range page.Contents {
			head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(b.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				b.logger.Debug().Err(err).Str("key", aws.ToString(obj.Key)).Msg("head object failed during search")
				continue
			}
			got, ok := head.Metadata[lowerKey]
			if !ok {
				got, ok = head.Metadata[key]
			}
			if !ok || got != value {
				continue
			}
			meta := make(map[string]string, len(head.Metadata))
			for mk, mv := range head.Metadata {
				meta[mk] = mv
			}
			// Restore the caller's casing so merged results index on the
			// same key as every other backend.
			delete(meta, lowerKey)
			meta[key] = value
			artifacts = append(artifacts, Artifact{
				ID:       aws.ToString(obj.Key),
				URL:      b.endpoint + "/" + b.bucket + "/" + aws.ToString(obj.Key),
				Metadata: meta,
			})
		}

		if page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}

	metrics.StorageOps.WithLabelValues(NameArchive, "search", "ok").Inc()
	return artifacts, nil
}

func (b *ArchiveBackend) Retrieve(ctx context.Context, id string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameArchive, "retrieve", "error").Inc()
		return nil, fmt.Errorf("archive retrieve %s: %w", id, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameArchive, "retrieve", "error").Inc()
		return nil, fmt.Errorf("archive retrieve %s: %w", id, err)
	}

	metrics.StorageOps.WithLabelValues(NameArchive, "retrieve", "ok").Inc()
	return payload, nil
}

func (b *ArchiveBackend) Unpin(ctx context.Context, ids []string) error {
	objects := make([]types.ObjectIdentifier, 0, len(ids))
	for _, id := range ids {
		objects = append(objects, types.ObjectIdentifier{Key: aws.String(id)})
	}

	_, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(b.bucket),
		Delete: &types.Delete{Objects: objects},
	})
	if err != nil {
		metrics.StorageOps.WithLabelValues(NameArchive, "unpin", "error").Inc()
		return fmt.Errorf("archive unpin: %w", err)
	}

	metrics.StorageOps.WithLabelValues(NameArchive, "unpin", "ok").Inc()
	return nil
}
