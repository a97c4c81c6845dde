package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

// Store archives finished analysis reports in an S3 compatible bucket.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New connects to MinIO and makes sure the bucket exists.
func New(ctx context.Context, cfg *config.Archive) (*Store, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, goerr.Wrap(domain.ErrConfiguration, "invalid archive endpoint", goerr.V("endpoint", cfg.Endpoint), goerr.V("error", err.Error()))
	}

	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to check archive bucket", goerr.V("bucket", cfg.BucketName))
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, goerr.Wrap(domain.Connectivity(err), "failed to create archive bucket", goerr.V("bucket", cfg.BucketName))
		}
	}

	return &Store{client: cli, bucketName: cfg.BucketName, region: cfg.Region}, nil
}

// PutReport uploads the record's markdown report and returns its URL.
func (s *Store) PutReport(ctx context.Context, r *domain.Record) (string, error) {
	key := r.ReportKey()
	body := []byte(r.Markdown())

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "text/markdown; charset=utf-8",
		UserMetadata: map[string]string{
			"student-id": r.StudentID,
			"record-id":  r.ID,
		},
	})
	if err != nil {
		return "", goerr.Wrap(domain.Connectivity(err), "failed to upload report", goerr.V("key", key))
	}

	// public URL when the bucket is public; private buckets need a presigned URL
	url := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucketName, key)
	return url, nil
}
