package repository

import (
	"testing"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositorySoftDelete(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "owner@example.com")
	repo := NewLookupRepository[model.Skill](db)

	skill, err := repo.Create(testCtx(), LookupCreate{Name: "go"}, user)
	require.NoError(t, err)
	require.NotZero(t, skill.ID)
	require.Equal(t, model.Epoch, skill.DeletedAt)
	require.NotNil(t, skill.CreatedByID)
	assert.Equal(t, user.ID, *skill.CreatedByID)

	deleted, err := repo.Delete(testCtx(), skill.ID, user)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	// Default reads never see the row again.
	got, err := repo.Get(testCtx(), skill.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The row still exists physically.
	var count int64
	require.NoError(t, repo.Unfiltered(testCtx()).Where("id = ?", skill.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRepositoryDeleteMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewLookupRepository[model.Skill](db)

	_, err := repo.Delete(testCtx(), 999, nil)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetOrCreateIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewLookupRepository[model.Company](db)

	first, err := repo.GetOrCreate(testCtx(), LookupCreate{Name: "Acme"}, nil)
	require.NoError(t, err)
	second, err := repo.GetOrCreate(testCtx(), LookupCreate{Name: "Acme"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := repo.Count(repo.Query(testCtx()))
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateByID(t *testing.T) {
	db := newTestDB(t)
	repo := NewLookupRepository[model.Company](db)

	created, err := repo.Create(testCtx(), LookupCreate{Name: "Acme"}, nil)
	require.NoError(t, err)

	// An explicit id wins over the name filter; the fetch comes back as-is.
	got, err := repo.GetOrCreate(testCtx(), LookupCreate{ID: created.ID, Name: "something else"}, nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Name)
}

func TestGetOrCreateAmbiguous(t *testing.T) {
	db := newTestDB(t)
	repo := NewLookupRepository[model.Company](db)

	for range 2 {
		_, err := repo.Create(testCtx(), LookupCreate{Name: "dup"}, nil)
		require.NoError(t, err)
	}

	_, err := repo.GetOrCreate(testCtx(), LookupCreate{Name: "dup"}, nil)
	assert.ErrorIs(t, err, apperror.ErrAmbiguousResult)
}

func TestPurgeRemovesSoftDeletedRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewLookupRepository[model.Skill](db)

	skill, err := repo.Create(testCtx(), LookupCreate{Name: "rust"}, nil)
	require.NoError(t, err)
	_, err = repo.Delete(testCtx(), skill.ID, nil)
	require.NoError(t, err)

	_, err = repo.Purge(testCtx(), skill.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, repo.Unfiltered(testCtx()).Count(&count).Error)
	assert.Zero(t, count)

	_, err = repo.Purge(testCtx(), skill.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestGetMultiSinceCursor(t *testing.T) {
	db := newTestDB(t)
	repo := NewLookupRepository[model.Skill](db)

	var ids []uint
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		skill, err := repo.Create(testCtx(), LookupCreate{Name: name}, nil)
		require.NoError(t, err)
		ids = append(ids, skill.ID)
	}

	rows, err := repo.Find(repo.GetMultiSince(testCtx(), ids[1], 2, nil))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ids[2], rows[0].ID)
	assert.Equal(t, ids[3], rows[1].ID)
}

func TestUpdateStampsActor(t *testing.T) {
	db := newTestDB(t)
	owner := newTestUser(t, db, "owner@example.com")
	editor := newTestUser(t, db, "editor@example.com")
	repo := NewLookupRepository[model.Skill](db)

	skill, err := repo.Create(testCtx(), LookupCreate{Name: "sql"}, owner)
	require.NoError(t, err)

	newName := "postgres"
	updated, err := repo.Update(testCtx(), skill, LookupUpdate{Name: &newName}, editor)
	require.NoError(t, err)
	assert.Equal(t, "postgres", updated.Name)
	require.NotNil(t, updated.UpdatedByID)
	assert.Equal(t, editor.ID, *updated.UpdatedByID)
	require.NotNil(t, updated.CreatedByID)
	assert.Equal(t, owner.ID, *updated.CreatedByID)
}
