package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"notary/internal/config"
)

const objectPrefix = "objects/"

// minioBackend implements Backend on an S3-compatible bucket with Object Lock
// enabled. Sealing puts every chunk version and the manifest under COMPLIANCE
// retention, which no credential can shorten or remove.
// It is safe for concurrent use by multiple goroutines.
type minioBackend struct {
	client    *minio.Client
	bucket    string
	retention time.Duration
}

// NewMinIO creates a new S3-compatible backend backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it with
// object locking if missing).
func NewMinIO(cfg config.MinIOConfig) (Backend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	years := cfg.RetentionYears
	if years <= 0 {
		years = 100
	}
	mb := &minioBackend{
		client:    cli,
		bucket:    cfg.Bucket,
		retention: time.Duration(years) * 365 * 24 * time.Hour,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{ObjectLocking: true}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return mb, nil
}

func chunkKey(id string, index int) string {
	return fmt.Sprintf("%s%s/chunk-%04d", objectPrefix, id, index)
}

func manifestKey(id string) string {
	return objectPrefix + id + "/manifest.json"
}

// Create uploads chunk 0 of a new object.
func (m *minioBackend) Create(ctx context.Context, id string, chunk []byte) (string, error) {
	return m.putChunk(ctx, id, 0, chunk)
}

// Append uploads chunk index of an unsealed object.
func (m *minioBackend) Append(ctx context.Context, id string, index int, chunk []byte) (string, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, manifestKey(id), minio.StatObjectOptions{}); err == nil {
		return "", fmt.Errorf("%w: %s", ErrSealed, id)
	} else if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("stat manifest: %w", err)
	}
	return m.putChunk(ctx, id, index, chunk)
}

func (m *minioBackend) putChunk(ctx context.Context, id string, index int, chunk []byte) (string, error) {
	info, err := m.client.PutObject(ctx, m.bucket, chunkKey(id, index), bytes.NewReader(chunk), int64(len(chunk)),
		minio.PutObjectOptions{
			ContentType:  "application/octet-stream",
			UserMetadata: map[string]string{"upload-id": id},
		})
	if err != nil {
		return "", err
	}
	return info.VersionID, nil
}

// Seal locks every chunk version and writes the manifest under the same retention.
// The returned identifier pins the manifest version when the bucket is versioned.
func (m *minioBackend) Seal(ctx context.Context, man Manifest) (string, error) {
	mode := minio.Compliance
	until := man.SealedAt.Add(m.retention)

	for i, v := range man.Versions {
		err := m.client.PutObjectRetention(ctx, m.bucket, chunkKey(man.ID, i), minio.PutObjectRetentionOptions{
			Mode:            &mode,
			RetainUntilDate: &until,
			VersionID:       v,
		})
		if err != nil {
			return "", fmt.Errorf("lock chunk %d: %w", i, err)
		}
	}

	body, err := json.Marshal(man)
	if err != nil {
		return "", err
	}
	info, err := m.client.PutObject(ctx, m.bucket, manifestKey(man.ID), bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{
			ContentType:     "application/json",
			Mode:            minio.Compliance,
			RetainUntilDate: until,
		})
	if err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	if info.VersionID == "" {
		return man.ID, nil
	}
	return man.ID + "@" + info.VersionID, nil
}

// Read fetches the manifest and the chunk versions it lists.
func (m *minioBackend) Read(ctx context.Context, objectID string) (Manifest, []byte, error) {
	id, version, err := parseObjectID(objectID)
	if err != nil {
		return Manifest{}, nil, err
	}

	raw, err := m.get(ctx, manifestKey(id), version)
	if err != nil {
		return Manifest{}, nil, err
	}
	var man Manifest
	if err := json.Unmarshal(raw, &man); err != nil {
		return Manifest{}, nil, fmt.Errorf("decode manifest: %w", err)
	}
	if man.ID != id {
		return Manifest{}, nil, fmt.Errorf("%w: manifest id %q", ErrCorrupt, man.ID)
	}

	var buf bytes.Buffer
	for i, v := range man.Versions {
		chunk, err := m.get(ctx, chunkKey(id, i), v)
		if err != nil {
			return Manifest{}, nil, fmt.Errorf("read chunk %d: %w", i, err)
		}
		buf.Write(chunk)
	}
	return man, buf.Bytes(), nil
}

func (m *minioBackend) get(ctx context.Context, key, version string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{VersionID: version})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return b, nil
}

// parseObjectID splits "<id>@<version>". The version part is optional.
func parseObjectID(objectID string) (string, string, error) {
	id, version, _ := strings.Cut(objectID, "@")
	if id == "" || strings.ContainsAny(id, "/\\") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidObjectID, objectID)
	}
	return id, version, nil
}
