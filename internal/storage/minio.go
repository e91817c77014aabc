package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"skald/internal/config"
	"skald/internal/models"
)

// MinioStore implements ObjectStore against any S3-compatible endpoint.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore builds the client from config. An empty endpoint returns a
// nil store, which the resolver treats as "object storage not configured".
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	if cfg.ObjectStore.Endpoint == "" {
		log.Debug("object store endpoint not configured, s3:// references will be rejected")
		return nil, nil
	}

	client, err := minio.New(cfg.ObjectStore.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey, ""),
		Secure: cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}

	log.Infof("Object store initialized (endpoint: %s)", cfg.ObjectStore.Endpoint)
	return &MinioStore{client: client}, nil
}

// ReadObject fetches the whole object. Partial reads are never returned: on
// any error the payload is discarded and the call fails.
func (s *MinioStore) ReadObject(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnresolvableInput, err)
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get object %q: %v", models.ErrUnresolvableInput, uri, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: object %q not found", models.ErrUnresolvableInput, uri)
		}
		return nil, fmt.Errorf("%w: read object %q: %v", models.ErrUnresolvableInput, uri, err)
	}
	return data, nil
}
