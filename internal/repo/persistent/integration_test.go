//go:build integration

package persistent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/migrations"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupPostgres(t *testing.T) *postgres.Postgres {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pipeline"),
		tcpostgres.WithUsername("pipeline"),
		tcpostgres.WithPassword("pipeline"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, err = postgres.Migrate(ctx, dsn, migrations.FS)
	require.NoError(t, err)

	pg, err := postgres.New(dsn, postgres.MaxPoolSize(16))
	require.NoError(t, err)
	t.Cleanup(pg.Close)

	return pg
}

func TestIntegration_ClaimIsExclusive(t *testing.T) {
	pg := setupPostgres(t)
	repo := NewIntakeRepo(pg)
	ctx := context.Background()

	const total = 60
	for i := 0; i < total; i++ {
		_, _, err := repo.Create(ctx, newPendingEvent(nil))
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
	)

	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch, err := repo.ClaimDue(ctx, 7)
				if err != nil {
					t.Error(err)
					return
				}
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, e := range batch {
					claimed[e.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, claimed, total)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "event %s claimed %d times", id, n)
	}
}

func TestIntegration_ClaimByIDOnlyOnce(t *testing.T) {
	pg := setupPostgres(t)
	repo := NewIntakeRepo(pg)
	ctx := context.Background()

	id, _, err := repo.Create(ctx, newPendingEvent(nil))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ClaimByID(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
				return
			}
			if assert.ErrorIs(t, err, errs.ErrAlreadyClaimed) {
				losers++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 7, losers)
}

func TestIntegration_FinalizeRespectsClaim(t *testing.T) {
	pg := setupPostgres(t)
	repo := NewIntakeRepo(pg)
	ctx := context.Background()

	id, _, err := repo.Create(ctx, newPendingEvent(nil))
	require.NoError(t, err)

	event, err := repo.ClaimByID(ctx, id)
	require.NoError(t, err)

	stale := *event
	stale.Status = entity.Pending
	stale.RetryCount = 1
	require.NoError(t, repo.Finalize(ctx, &stale))

	event.Status = entity.Completed
	err = repo.Finalize(ctx, event)
	require.ErrorIs(t, err, errs.ErrClaimLost)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.Pending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestIntegration_DuplicateDelivery(t *testing.T) {
	pg := setupPostgres(t)
	repo := NewIntakeRepo(pg)
	ctx := context.Background()

	delivery := "hotmart-123"
	first, created, err := repo.Create(ctx, newPendingEvent(&delivery))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := repo.Create(ctx, newPendingEvent(&delivery))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
}

func TestIntegration_ApprovalNeverDowngradesCancellation(t *testing.T) {
	pg := setupPostgres(t)
	repo := NewTransactionRepo(pg)
	ctx := context.Background()

	trx := &entity.Transaction{
		TransactionID: "T1",
		BuyerEmail:    "a@x.com",
		AmountCents:   19900,
		Currency:      "BRL",
		Status:        entity.TransactionApproved,
		OccurredAt:    time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, repo.UpsertApproved(ctx, trx))

	_, err := repo.UpdateStatus(ctx, "T1", entity.TransactionRefunded, time.Now())
	require.NoError(t, err)

	require.NoError(t, repo.UpsertApproved(ctx, trx))

	stored, err := repo.GetByID(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionRefunded, stored.Status)
}

func TestIntegration_MetricContributionCountedOnce(t *testing.T) {
	pg := setupPostgres(t)
	repo := NewMetricRepo(pg)
	ctx := context.Background()

	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := entity.MetricContribution{Date: day, Name: entity.MetricRevenueCents, ContributionKey: "T1", Value: 19900}

	for i := 0; i < 3; i++ {
		_, err := repo.Add(ctx, c)
		require.NoError(t, err)
	}
	_, err := repo.Add(ctx, entity.MetricContribution{Date: day, Name: entity.MetricRevenueCents, ContributionKey: "T2", Value: 100})
	require.NoError(t, err)

	metrics, err := repo.ListDaily(ctx, day)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, int64(20000), metrics[0].Value)
}

func TestIntegration_ActionLogRoundTrip(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()

	id, _, err := NewIntakeRepo(pg).Create(ctx, newPendingEvent(nil))
	require.NoError(t, err)

	logs := NewActionLogRepo(pg)
	entry := &entity.ActionLogEntry{
		ID:            uuid.New(),
		IntakeEventID: id,
		Attempt:       1,
		Stage:         entity.StageRouting,
		StartedAt:     time.Now(),
	}
	require.NoError(t, logs.Create(ctx, entry))

	entry.Stage = entity.StageFailed
	entry.ActionsExecuted = []string{"upsert_transaction"}
	entry.ErrorDetail = &entity.ErrorDetail{Step: "upsert_enrollment", Kind: entity.ErrorKindRetryable, Message: "boom"}
	require.NoError(t, logs.Update(ctx, entry))

	entries, err := logs.ListByIntakeEvent(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"upsert_transaction"}, entries[0].ActionsExecuted)
	require.NotNil(t, entries[0].ErrorDetail)
	assert.Equal(t, "upsert_enrollment", entries[0].ErrorDetail.Step)

	raw, err := json.Marshal(entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"stage":"failed"`)
}
