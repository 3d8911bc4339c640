//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"vcs-release-tracker/internal/database"
	custom_errors "vcs-release-tracker/internal/errors"
	"vcs-release-tracker/internal/model"
	"vcs-release-tracker/internal/registry"
	"vcs-release-tracker/internal/release"
)

func setupTestDatabase(ctx context.Context, t *testing.T) *pgxpool.Pool {
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	t.Cleanup(func() {
		dbpool.Close()
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	return dbpool
}

func newIntegrationServices(dbpool *pgxpool.Pool) (*registry.Service, *release.Service) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := database.New(dbpool)
	return registry.NewService(db, logger), release.NewService(db, logger)
}

func TestReleaseLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)
	repos, releases := newIntegrationServices(dbpool)

	// Register the repository and enable webhooks for user 7.
	repo, err := repos.Register(ctx, database.CreateRepositoryParams{
		Provider:      "gh",
		ProviderID:    "123",
		FullName:      "octo/widgets",
		DefaultBranch: "main",
	})
	require.NoError(t, err)

	repo, err = repos.Enable(ctx, repo.ID, "hook-55", 7)
	require.NoError(t, err)
	assert.True(t, repo.Enabled())

	require.NoError(t, repos.GrantAccess(ctx, repo.ID, 7))
	ok, err := repos.HasAccess(ctx, repo.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	// Ingest the release event and walk it through the pending path.
	rel, err := releases.Ingest(ctx, release.IngestParams{
		Provider:     "gh",
		ProviderID:   "r1",
		RepositoryID: repo.ID,
		Tag:          "v1.0",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusReceived, rel.Status)

	rel, err = releases.BeginProcessing(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, rel.Status)

	recordID := uuid.New()
	rel, err = releases.MarkPending(ctx, rel.ID, recordID, true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublishPending, rel.Status)
	require.NotNil(t, rel.RecordID)
	assert.Equal(t, recordID, *rel.RecordID)
	require.NotNil(t, rel.RecordIsDraft)
	assert.True(t, *rel.RecordIsDraft)

	// No published non-draft release exists yet.
	_, err = repos.LatestPublishedRelease(ctx, repo.ID)
	var notFound *custom_errors.ReleaseNotFoundError
	require.ErrorAs(t, err, &notFound)

	rel, err = releases.ResolvePending(ctx, rel.ID, model.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, rel.Status)

	// The draft flag records the original save mode and survives resolution.
	found, err := releases.GetForRecord(ctx, recordID, true)
	require.NoError(t, err)
	assert.Equal(t, rel.ID, found.ID)
	require.NotNil(t, found.RecordIsDraft)
	assert.True(t, *found.RecordIsDraft)

	// Redelivery of the same provider event is a no-op that reports the
	// existing row in its current state.
	existing, err := releases.Ingest(ctx, release.IngestParams{
		Provider:     "gh",
		ProviderID:   "r1",
		RepositoryID: repo.ID,
		Tag:          "v1.0",
	})
	var already *custom_errors.ReleaseAlreadyReceivedError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, rel.ID, existing.ID)
	assert.Equal(t, model.StatusPublished, existing.Status)

	// Resolving twice is an illegal edge, not a silent overwrite.
	_, err = releases.ResolvePending(ctx, rel.ID, model.StatusFailed)
	var invalid *custom_errors.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.StatusPublished, invalid.From)
}

func TestLatestPublishedRelease_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)
	repos, releases := newIntegrationServices(dbpool)

	repo, err := repos.Register(ctx, database.CreateRepositoryParams{
		Provider:      "gh",
		ProviderID:    "456",
		FullName:      "octo/gadgets",
		DefaultBranch: "main",
	})
	require.NoError(t, err)

	publish := func(providerID, tag string, draft bool) model.Release {
		rel, err := releases.Ingest(ctx, release.IngestParams{
			Provider:     "gh",
			ProviderID:   providerID,
			RepositoryID: repo.ID,
			Tag:          tag,
		})
		require.NoError(t, err)
		_, err = releases.BeginProcessing(ctx, rel.ID)
		require.NoError(t, err)
		rel, err = releases.MarkPublished(ctx, rel.ID, uuid.New(), draft)
		require.NoError(t, err)
		return rel
	}

	publish("r10", "v1.0", false)
	want := publish("r11", "v1.1", false)
	publish("r12", "v1.2-draft", true)

	latest, err := repos.LatestPublishedRelease(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, latest.ID, "drafts are not live releases")

	// Duplicate natural keys are rejected by the schema.
	_, err = repos.Create(ctx, database.CreateRepositoryParams{
		Provider:      "gh",
		ProviderID:    "456",
		FullName:      "octo/gadgets-fork",
		DefaultBranch: "main",
	})
	var exists *custom_errors.RepositoryExistsError
	require.ErrorAs(t, err, &exists)
}

func TestMarkFailedMerge_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)
	repos, releases := newIntegrationServices(dbpool)

	repo, err := repos.Register(ctx, database.CreateRepositoryParams{
		Provider:      "gh",
		ProviderID:    "321",
		FullName:      "octo/flaky",
		DefaultBranch: "main",
	})
	require.NoError(t, err)

	rel, err := releases.Ingest(ctx, release.IngestParams{
		Provider:     "gh",
		ProviderID:   "r30",
		RepositoryID: repo.ID,
		Tag:          "v2.0",
	})
	require.NoError(t, err)
	_, err = releases.BeginProcessing(ctx, rel.ID)
	require.NoError(t, err)

	rel, err = releases.MarkFailed(ctx, rel.ID, model.ErrorsMap{"zipball": "timeout", "attempt": "1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, rel.Status)

	// A second failure report merges into the stored map: disjoint keys
	// survive, shared keys take the newer value.
	rel, err = releases.MarkFailed(ctx, rel.ID, model.ErrorsMap{"record": "rejected", "attempt": "2"})
	require.NoError(t, err)

	assert.Equal(t, "timeout", rel.Errors["zipball"])
	assert.Equal(t, "rejected", rel.Errors["record"])
	assert.Equal(t, "2", rel.Errors["attempt"])

	stored, err := releases.Get(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, rel.Errors, stored.Errors)
}

func TestRepositoryRemove_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool := setupTestDatabase(ctx, t)
	repos, releases := newIntegrationServices(dbpool)

	repo, err := repos.Register(ctx, database.CreateRepositoryParams{
		Provider:      "gh",
		ProviderID:    "789",
		FullName:      "octo/legacy",
		DefaultBranch: "main",
	})
	require.NoError(t, err)
	repo, err = repos.Enable(ctx, repo.ID, "hook-9", 7)
	require.NoError(t, err)

	rel, err := releases.Ingest(ctx, release.IngestParams{
		Provider:     "gh",
		ProviderID:   "r20",
		RepositoryID: repo.ID,
		Tag:          "v0.1",
	})
	require.NoError(t, err)

	require.NoError(t, repos.Remove(ctx, repo.ID))

	// Removal soft-deletes releases and disables the hook, but the rows stay.
	repo, err = repos.Get(ctx, repo.ID)
	require.NoError(t, err)
	assert.False(t, repo.Enabled())

	rel, err = releases.Get(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDeleted, rel.Status)
}
