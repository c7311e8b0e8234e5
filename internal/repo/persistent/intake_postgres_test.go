package persistent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingEvent(deliveryID *string) *entity.IntakeEvent {
	now := time.Now()

	return &entity.IntakeEvent{
		ID:            uuid.New(),
		Source:        entity.SourcePaymentPlatform,
		EventType:     "purchase_approved",
		DeliveryID:    deliveryID,
		Payload:       json.RawMessage(`{"transaction_id":"T1"}`),
		Status:        entity.Pending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

func TestIntakeRepo_Create(t *testing.T) {
	t.Run("new event", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		repo := NewIntakeRepo(pg)
		event := newPendingEvent(nil)

		mock.ExpectQuery(`INSERT INTO intake_events`).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(event.ID))

		id, created, err := repo.Create(context.Background(), event)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, event.ID, id)
	})

	t.Run("duplicate delivery returns stored id", func(t *testing.T) {
		pg, mock := newMockPostgres(t)
		repo := NewIntakeRepo(pg)
		delivery := "dlv-1"
		event := newPendingEvent(&delivery)
		stored := uuid.New()

		mock.ExpectQuery(`INSERT INTO intake_events .* ON CONFLICT \(source, delivery_id\)`).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT id FROM intake_events WHERE`).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(stored))

		id, created, err := repo.Create(context.Background(), event)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, stored, id)
	})
}

func TestIntakeRepo_ClaimByID_AlreadyClaimed(t *testing.T) {
	pg, mock := newMockPostgres(t)
	repo := NewIntakeRepo(pg)

	mock.ExpectQuery(`UPDATE intake_events SET status = \$1, claimed_at = now\(\) WHERE`).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.ClaimByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, errs.ErrAlreadyClaimed)
}

func TestIntakeRepo_ClaimDue_QueryError(t *testing.T) {
	pg, mock := newMockPostgres(t)
	repo := NewIntakeRepo(pg)

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED\) RETURNING`).
		WillReturnError(context.DeadlineExceeded)

	_, err := repo.ClaimDue(context.Background(), 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIntakeRepo_Finalize(t *testing.T) {
	claimedAt := time.Now()

	tests := []struct {
		name    string
		claimed *time.Time
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
	}{
		{
			name:    "still held",
			claimed: &claimedAt,
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE intake_events SET status`).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name:    "reclaimed by someone else",
			claimed: &claimedAt,
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE intake_events SET status`).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: errs.ErrClaimLost,
		},
		{
			name:    "never claimed",
			claimed: nil,
			setup:   func(mock pgxmock.PgxPoolIface) {},
			wantErr: errs.ErrClaimLost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg, mock := newMockPostgres(t)
			repo := NewIntakeRepo(pg)
			tt.setup(mock)

			event := newPendingEvent(nil)
			event.Status = entity.Completed
			event.ClaimedAt = tt.claimed

			err := repo.Finalize(context.Background(), event)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIntakeRepo_MarkArchived_AlreadyArchived(t *testing.T) {
	pg, mock := newMockPostgres(t)
	repo := NewIntakeRepo(pg)

	mock.ExpectExec(`UPDATE intake_events SET archived_at = \$1 WHERE archived_at IS NULL AND id = \$2`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkArchived(context.Background(), uuid.New(), time.Now())
	require.ErrorIs(t, err, errs.ErrRecordNotFound)
}
