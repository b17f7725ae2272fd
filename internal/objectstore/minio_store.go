// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds the connection details for the MinIO-compatible backend.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseTLS    bool
}

// MinioStore implements Store over a MinIO client.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore dials the configured endpoint. It does not touch the
// network beyond client construction; call EnsureBucket to provision.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: new minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket exists check: %v", ErrUnavailable, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: make bucket: %v", ErrUnavailable, err)
		}
	}
	if err := s.client.EnableVersioning(ctx, s.bucket); err != nil {
		return fmt.Errorf("%w: enable versioning: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *MinioStore) PresignPut(ctx context.Context, key, mime string, size int64, ttl time.Duration) (string, time.Time, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: presign put: %v", ErrUnavailable, err)
	}
	// mime/size are enforced by the caller validating the UploadSession,
	// not by the presigned URL itself; PUT presigning has no header-policy
	// hook in this client version.
	_ = mime
	_ = size
	return u.String(), time.Now().Add(ttl), nil
}

func (s *MinioStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: presign get: %v", ErrUnavailable, err)
	}
	return u.String(), time.Now().Add(ttl), nil
}

func (s *MinioStore) DownloadToPath(ctx context.Context, key, path string) error {
	if err := s.client.FGetObject(ctx, s.bucket, key, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("%w: download %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *MinioStore) UploadFromPath(ctx context.Context, key, path, mime string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, path, minio.PutObjectOptions{ContentType: mime})
	if err != nil {
		return fmt.Errorf("%w: upload %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *MinioStore) OpenReader(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, key, err)
	}
	return obj, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

