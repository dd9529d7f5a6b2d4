package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/troubleshooter/internal/errs"
	"github.com/and161185/troubleshooter/internal/model"
	"github.com/and161185/troubleshooter/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var profileCols = []string{"id", "display_name", "role", "updated_at"}

func TestProfileRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	name := "alice"

	mock.ExpectQuery(`SELECT id, display_name, role, updated_at FROM profiles WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(profileCols).AddRow(id, &name, "superuser", noTime))
	p, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "alice", p.DisplayName)
	require.Equal(t, model.RoleUser, p.Role, "unknown roles degrade to user")

	mock.ExpectQuery(`SELECT id, display_name, role, updated_at FROM profiles WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestProfileRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	a, b := "alice", "bob"
	ts := time.Now()

	mock.ExpectQuery(`SELECT id, display_name, role, updated_at FROM profiles ORDER BY display_name`).
		WillReturnRows(pgxmock.NewRows(profileCols).
			AddRow(uuid.Must(uuid.NewV4()), &a, "admin", &ts).
			AddRow(uuid.Must(uuid.NewV4()), &b, "user", noTime))
	ps, err := NewProfileRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)
	require.Equal(t, model.RoleAdmin, ps[0].Role)
	require.Equal(t, ts, ps[0].UpdatedAt)
}

func TestProfileRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewProfileRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	name := "Alice"
	role := model.RoleAdmin

	mock.ExpectExec(`UPDATE profiles SET display_name=\$2, role=\$3, updated_at=now\(\) WHERE id=\$1`).
		WithArgs(id, "Alice", "admin").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Update(ctx, id, repository.ProfilePatch{DisplayName: &name, Role: &role}))

	mock.ExpectExec(`UPDATE profiles SET role=\$2, updated_at=now\(\) WHERE id=\$1`).
		WithArgs(id, "admin").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.Update(ctx, id, repository.ProfilePatch{Role: &role}), errs.ErrNotFound)

	require.Error(t, r.Update(ctx, id, repository.ProfilePatch{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`DELETE FROM profiles WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, NewProfileRepo(db).Delete(context.Background(), id))
}
