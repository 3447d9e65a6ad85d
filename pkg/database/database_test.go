package database

import (
	"context"
	stdsql "database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/politeai/tonebridge/pkg/rag"
)

// newTestClient creates a test database client with CI/local environment
// detection. In CI (when CI_DATABASE_URL is set) it connects to an external
// PostgreSQL service container; locally it spins up a testcontainer.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		t.Log("Using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)

		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	} else {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
	}

	db, err := stdsql.Open("pgx", connStr)
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, RunMigrations(db))

	client := NewClientFromDB(db)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func testEntry(category rag.Category, content string) rag.Entry {
	return rag.Entry{
		Category:      category,
		Content:       content,
		DedupeKey:     rag.ComputeDedupeKey(category, content, "BOSS", ""),
		Personas:      "BOSS",
		EmbeddingBlob: "[0.1,0.2,0.3]",
		Enabled:       true,
	}
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Zero(t, health.RagEntries)
	assert.Greater(t, health.MaxOpenConns, 0)
	assert.GreaterOrEqual(t, health.PingMs, int64(0))

	store := NewRagStore(client.DB())
	_, err = store.SaveEntry(ctx, testEntry(rag.CategoryCushion, "검토해 보겠습니다"))
	require.NoError(t, err)

	health, err = client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, health.RagEntries)
}

func TestRagStoreSaveAndFind(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewRagStore(client.DB())

	entry := testEntry(rag.CategoryCushion, "확인해 본 결과 말씀드리면")
	id, err := store.SaveEntry(ctx, entry)
	require.NoError(t, err)
	assert.Positive(t, id)

	found, err := store.FindByDedupeKey(ctx, entry.DedupeKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, entry.Content, found.Content)
	assert.Equal(t, "BOSS", found.Personas)
	assert.True(t, found.Enabled)

	missing, err := store.FindByDedupeKey(ctx, "no-such-key")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRagStoreUpsertOnDedupeKey(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewRagStore(client.DB())

	entry := testEntry(rag.CategoryPolicy, "환불 규정 안내")
	first, err := store.SaveEntry(ctx, entry)
	require.NoError(t, err)

	entry.EmbeddingBlob = "[0.9,0.9,0.9]"
	second, err := store.SaveEntry(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := store.FindAllEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "[0.9,0.9,0.9]", entries[0].EmbeddingBlob)
}

func TestRagStoreFindAllEnabledSkipsDisabled(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewRagStore(client.DB())

	enabled := testEntry(rag.CategoryExpressionPool, "사용 가능 표현")
	disabled := testEntry(rag.CategoryExpressionPool, "비활성 표현")
	disabled.Enabled = false

	_, err := store.SaveBatch(ctx, []rag.Entry{enabled, disabled})
	require.NoError(t, err)

	entries, err := store.FindAllEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "사용 가능 표현", entries[0].Content)
}

func TestRagStoreCountByCategory(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewRagStore(client.DB())

	_, err := store.SaveBatch(ctx, []rag.Entry{
		testEntry(rag.CategoryCushion, "쿠션 하나"),
		testEntry(rag.CategoryCushion, "쿠션 둘"),
		testEntry(rag.CategoryForbidden, "금지 표현"),
	})
	require.NoError(t, err)

	counts, err := store.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[rag.CategoryCushion])
	assert.Equal(t, 1, counts[rag.CategoryForbidden])
}

func TestRagStoreDelete(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewRagStore(client.DB())

	_, err := store.SaveBatch(ctx, []rag.Entry{
		testEntry(rag.CategoryCushion, "쿠션"),
		testEntry(rag.CategoryExample, "예시"),
	})
	require.NoError(t, err)

	deleted, err := store.DeleteByCategory(ctx, rag.CategoryCushion)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{URL: "postgres://localhost/db", MaxOpenConns: 10, MaxIdleConns: 5}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Config{MaxOpenConns: 10}.Validate())
	assert.Error(t, Config{URL: "postgres://x", MaxOpenConns: 0}.Validate())
	assert.Error(t, Config{URL: "postgres://x", MaxOpenConns: 5, MaxIdleConns: 10}.Validate())
}

func TestNewConfigDefaults(t *testing.T) {
	os.Unsetenv("DB_MAX_OPEN_CONNS")
	os.Unsetenv("DB_MAX_IDLE_CONNS")

	cfg, err := NewConfig("postgres://localhost/tonebridge")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)

	os.Setenv("DB_MAX_OPEN_CONNS", "bogus")
	t.Cleanup(func() { os.Unsetenv("DB_MAX_OPEN_CONNS") })
	_, err = NewConfig("postgres://localhost/tonebridge")
	assert.Error(t, err)
}
