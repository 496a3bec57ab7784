package pgvector

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/wordflowlab/careerpilot/pkg/types"
	"github.com/wordflowlab/careerpilot/pkg/vector"
)

// setupPgvectorContainer 启动带 pgvector 扩展的 PostgreSQL 容器。
// 需要 Docker, 设置 CAREERPILOT_DOCKER_TESTS=1 时才运行。
func setupPgvectorContainer(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("CAREERPILOT_DOCKER_TESTS") == "" {
		t.Skip("set CAREERPILOT_DOCKER_TESTS=1 to run pgvector integration tests")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "careerpilot",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(120 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start pgvector container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/careerpilot?sslmode=disable", host, port.Port())
	st, err := New(ctx, &Config{DSN: dsn, Dimension: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.EnsureSchema(ctx))
	return st
}

func TestStore_UpsertAndQuery(t *testing.T) {
	st := setupPgvectorContainer(t)
	ctx := context.Background()

	records := []types.UpsertRecord{
		{ID: "doc_chunk_0", Values: []float32{1, 0, 0}, Metadata: map[string]interface{}{"text": "react"}},
		{ID: "doc_chunk_1", Values: []float32{0, 1, 0}, Metadata: map[string]interface{}{"text": "go"}},
	}
	require.NoError(t, st.Upsert(ctx, "courses", records))

	t.Run("按相似度排序并带回元数据", func(t *testing.T) {
		hits, err := st.Query(ctx, vector.Query{Vector: []float32{0.9, 0.1, 0}, TopK: 2, Namespace: "courses"})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "doc_chunk_0", hits[0].ID)
		assert.Equal(t, "react", hits[0].Text())
		assert.Greater(t, hits[0].Score, hits[1].Score)
	})

	t.Run("命名空间隔离", func(t *testing.T) {
		hits, err := st.Query(ctx, vector.Query{Vector: []float32{1, 0, 0}, TopK: 5, Namespace: "cv"})
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("重复写入覆盖", func(t *testing.T) {
		require.NoError(t, st.Upsert(ctx, "courses", []types.UpsertRecord{
			{ID: "doc_chunk_0", Values: []float32{1, 0, 0}, Metadata: map[string]interface{}{"text": "react v2"}},
		}))
		hits, err := st.Query(ctx, vector.Query{Vector: []float32{1, 0, 0}, TopK: 1, Namespace: "courses"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "react v2", hits[0].Text())
	})

	t.Run("维度不符直接拒绝", func(t *testing.T) {
		err := st.Upsert(ctx, "courses", []types.UpsertRecord{{ID: "x", Values: []float32{1}}})
		assert.ErrorContains(t, err, "dimension mismatch")
	})
}
