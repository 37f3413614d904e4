//go:build integration

package storage

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"notary/internal/config"
	"notary/internal/repository/memory"
)

func startMinIO(t *testing.T) config.MinIOConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "notary",
				"MINIO_ROOT_PASSWORD": "notary-secret",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	return config.MinIOConfig{
		Endpoint:       host + ":" + port.Port(),
		AccessKey:      "notary",
		SecretKey:      "notary-secret",
		Bucket:         "notary-objects",
		RetentionYears: 1,
	}
}

func TestMinIOBackend_PublishSealsObject(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}
	cfg := startMinIO(t)

	backend, err := NewMinIO(cfg)
	require.NoError(t, err)
	p := NewPublisher(backend, memory.NewNotaryMemory(), 8)
	ctx := context.Background()

	payload := bytes.Repeat([]byte("notary"), 10)
	objectID, err := p.Publish(ctx, payload)
	require.NoError(t, err)
	assert.Contains(t, objectID, "@")

	got, err := p.Fetch(ctx, objectID)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	mb := backend.(*minioBackend)
	id, _, err := parseObjectID(objectID)
	require.NoError(t, err)

	_, err = mb.Append(ctx, id, 1, []byte("tamper"))
	assert.ErrorIs(t, err, ErrSealed)

	st, err := mb.client.StatObject(ctx, cfg.Bucket, chunkKey(id, 0), minio.StatObjectOptions{})
	require.NoError(t, err)
	err = mb.client.RemoveObject(ctx, cfg.Bucket, chunkKey(id, 0), minio.RemoveObjectOptions{VersionID: st.VersionID})
	assert.Error(t, err, "compliance retention must block version deletion")
}
