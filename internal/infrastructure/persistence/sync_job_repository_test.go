package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/shopsync/backend/internal/domain/scheduling"
)

// newMockGormDB opens a postgres-dialect gorm DB over a mocked SQL connection
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormJobRepository_Claim_Postgres(t *testing.T) {
	t.Run("wins the claim when one row is updated", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormJobRepository(db)
		id := uuid.New()

		mock.ExpectExec(`UPDATE "sync_jobs" SET "started_at"=\$1,"status"=\$2,"updated_at"=\$3 WHERE id = \$4 AND status = \$5`).
			WithArgs(sqlmock.AnyArg(), "running", sqlmock.AnyArg(), id.String(), "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.Claim(context.Background(), id, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loses the claim when no row matches", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormJobRepository(db)

		mock.ExpectExec(`UPDATE "sync_jobs" SET .* WHERE id = \$4 AND status = \$5`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.Claim(context.Background(), uuid.New(), time.Now())
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		db, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormJobRepository(db)

		mock.ExpectExec(`UPDATE "sync_jobs"`).WillReturnError(errors.New("connection reset"))

		ok, err := repo.Claim(context.Background(), uuid.New(), time.Now())
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestGormJobRepository_FindDuePending_Postgres(t *testing.T) {
	db, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormJobRepository(db)

	id := uuid.New()
	tenantID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "tenant_id", "type", "platform", "status", "priority", "scheduled_at", "parameters", "result"}).
		AddRow(id, tenantID, "order_monitor", "shopee", "pending", 10, now, `{}`, `null`)

	mock.ExpectQuery(`SELECT \* FROM "sync_jobs" WHERE status = \$1 AND scheduled_at <= \$2 ORDER BY priority DESC,scheduled_at ASC LIMIT .*`).
		WillReturnRows(rows)

	jobs, err := repo.FindDuePending(context.Background(), now, 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, id, jobs[0].ID)
	assert.Equal(t, scheduling.PriorityHigh, jobs[0].Priority)
	assert.Nil(t, jobs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormScheduleRepository_FindDue_Postgres(t *testing.T) {
	db, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormScheduleRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "sync_schedules" WHERE enabled = \$1 AND next_run <= \$2 ORDER BY next_run ASC LIMIT .*`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	list, err := repo.FindDue(context.Background(), time.Now(), 100)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormNotificationRepository_FindActive_Postgres(t *testing.T) {
	db, mock, mockDB := newMockGormDB(t)
	defer mockDB.Close()
	repo := NewGormNotificationRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "notifications" WHERE .*tenant_id = \$1 AND is_read = \$2 AND is_archived = \$3.*expires_at IS NULL OR expires_at > \$4.*dedup_key = \$5 ORDER BY created_at DESC`).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := repo.FindActive(context.Background(), uuid.New(), "new_order:shopee:X1", time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
