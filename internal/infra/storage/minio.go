package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioScheme prefixes attachment handles stored in MinIO.
const MinioScheme = "minio://"

type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewMinio buat koneksi MinIO
func NewMinio(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: cli, bucketName: bucket, region: region}, nil
}

// Open streams the object behind a minio://bucket/key handle. A handle
// without a bucket ("minio:///key" or a bare key) uses the default bucket.
func (s *MinioStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	bucket, key, err := s.parse(handle)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notExist(err, handle)
	}
	// GetObject is lazy; Stat surfaces a missing key before the first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, notExist(err, handle)
	}
	return obj, nil
}

// Upload stores a local file under key and returns its attachment handle.
func (s *MinioStore) Upload(ctx context.Context, localPath, key string) (string, error) {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath)))
	if strings.EqualFold(filepath.Ext(localPath), ".dcm") {
		contentType = "application/dicom"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.FPutObject(ctx, s.bucketName, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return MinioScheme + s.bucketName + "/" + key, nil
}

func (s *MinioStore) parse(handle string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(handle, MinioScheme)
	if rest == handle {
		return s.bucketName, strings.TrimLeft(handle, "/"), nil
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid attachment handle %q", handle)
	}
	if bucket == "" {
		bucket = s.bucketName
	}
	return bucket, key, nil
}

func notExist(err error, handle string) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %w", handle, fs.ErrNotExist)
	}
	return err
}
