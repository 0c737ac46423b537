// internal/campaigns/store_test.go
package campaigns

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"marketing-platform/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestStore_ListByTenant(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "name", "display_as", "target_zone",
		"target_pages", "is_active", "start_date", "end_date", "priority",
		"created_at", "updated_at",
	}).
		AddRow("c1", "tenant-a", "Summer Sale", "inline", "hero-top",
			pq.StringArray{"home", "pricing"}, true, nil, nil, 5, now, now).
		AddRow("c2", "tenant-a", "Popup Promo", "popup", "",
			pq.StringArray{}, true, nil, nil, 1, now, now)

	mock.ExpectQuery(`SELECT id, tenant_id, name, display_as`).
		WithArgs("tenant-a").
		WillReturnRows(rows)

	got, err := store.ListByTenant(context.Background(), "tenant-a")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, []string{"home", "pricing"}, got[0].TargetPages)
	assert.Equal(t, "hero-top", got[0].TargetZone)
	assert.Empty(t, got[1].TargetPages)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Create_AssignsID(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(`INSERT INTO campaigns`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &models.Campaign{
		TenantID:  "tenant-a",
		Name:      "New Campaign",
		DisplayAs: models.DisplayInline,
		IsActive:  true,
	}

	err := store.Create(context.Background(), c)

	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Update_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(`UPDATE campaigns`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Update(context.Background(), &models.Campaign{ID: "missing", TenantID: "tenant-a"})

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db)

	mock.ExpectExec(`DELETE FROM campaigns`).
		WithArgs("c1", "tenant-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), "tenant-a", "c1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
