// Package media turns stored attachment references into URLs clients can load.
package media

import (
	"context"
	"net/url"
	"strings"
	"time"

	"civicfeed/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultURLTTL is how long a presigned media URL stays valid.
const DefaultURLTTL = 15 * time.Minute

// Signer resolves the media of a post in place.
type Signer interface {
	Sign(ctx context.Context, m *models.Media) error
}

// Config holds object storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type presigner interface {
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// MinioSigner presigns GET URLs for media kept in a MinIO/S3 bucket.
type MinioSigner struct {
	client presigner
	bucket string
	ttl    time.Duration
}

// NewMinioSigner connects to the object store described by cfg.
func NewMinioSigner(cfg Config) (*MinioSigner, error) {
	cl, err := minio.New(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioSigner{client: cl, bucket: cfg.Bucket, ttl: DefaultURLTTL}, nil
}

// Sign replaces MediaURL with a presigned URL when the media has an object
// key. The key itself is never sent to clients.
func (s *MinioSigner) Sign(ctx context.Context, m *models.Media) error {
	if m.ObjectKey == "" {
		return nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, m.ObjectKey, s.ttl, nil)
	if err != nil {
		return err
	}
	m.MediaURL = u.String()
	m.ObjectKey = ""
	return nil
}

// PassthroughSigner serves media URLs as stored.
type PassthroughSigner struct{}

func (PassthroughSigner) Sign(_ context.Context, m *models.Media) error {
	m.ObjectKey = ""
	return nil
}

// New returns a MinIO signer, or a PassthroughSigner when no endpoint is set.
func New(cfg Config) (Signer, error) {
	if cfg.Endpoint == "" {
		return PassthroughSigner{}, nil
	}
	return NewMinioSigner(cfg)
}

// SignPosts signs every attachment of posts.
func SignPosts(ctx context.Context, s Signer, posts []models.Post) error {
	for i := range posts {
		for j := range posts[i].Media {
			if err := s.Sign(ctx, &posts[i].Media[j]); err != nil {
				return err
			}
		}
	}
	return nil
}
