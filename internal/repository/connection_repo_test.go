package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newConnRepo(db *gorm.DB) *ConnectionRepository {
	return NewConnectionRepository(db, cache.NewMemory(), time.Minute, testLogger())
}

func TestConnectionLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := newConnRepo(db)
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")

	conn, err := repo.Create(testCtx(), alice, bob)
	require.NoError(t, err)
	assert.False(t, conn.Connected)
	assert.Equal(t, model.ConnectionSent, conn.StatusFor(alice.ID))
	assert.Equal(t, model.ConnectionReceived, conn.StatusFor(bob.ID))

	// The cached sets answer symmetrically.
	status, err := repo.StatusBetween(testCtx(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionSent, status)
	status, err = repo.StatusBetween(testCtx(), bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionReceived, status)

	// Only the receiving side may accept.
	_, err = repo.Accept(testCtx(), alice, conn.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	accepted, err := repo.Accept(testCtx(), bob, conn.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Connected)
	assert.Equal(t, model.ConnectionActive, accepted.StatusFor(alice.ID))
	assert.Equal(t, model.ConnectionActive, accepted.StatusFor(bob.ID))

	status, err = repo.StatusBetween(testCtx(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConnectionActive, status)

	// Disconnecting clears the relation on both sides.
	_, err = repo.Delete(testCtx(), alice, conn.ID)
	require.NoError(t, err)
	status, err = repo.StatusBetween(testCtx(), bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, status)
}

func TestConnectionPairUniqueness(t *testing.T) {
	db := newTestDB(t)
	repo := newConnRepo(db)
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")

	_, err := repo.Create(testCtx(), alice, bob)
	require.NoError(t, err)

	// Neither orientation may open a second live row.
	_, err = repo.Create(testCtx(), alice, bob)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	_, err = repo.Create(testCtx(), bob, alice)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = repo.Create(testCtx(), alice, alice)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestConnCountsReadThrough(t *testing.T) {
	db := newTestDB(t)
	repo := newConnRepo(db)
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")
	carol := newTestUser(t, db, "carol@example.com")

	conn, err := repo.Create(testCtx(), alice, bob)
	require.NoError(t, err)
	_, err = repo.Accept(testCtx(), bob, conn.ID)
	require.NoError(t, err)
	_, err = repo.Create(testCtx(), carol, alice)
	require.NoError(t, err)

	counts, err := repo.GetConnCounts(testCtx(), alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Active)
	assert.EqualValues(t, 0, counts.Sent)
	assert.EqualValues(t, 1, counts.Received)

	// Every write expires the pair's counters, so the next read is fresh.
	pending, err := repo.GetBetween(testCtx(), carol.ID, alice.ID)
	require.NoError(t, err)
	_, err = repo.Accept(testCtx(), alice, pending.ID)
	require.NoError(t, err)

	counts, err = repo.GetConnCounts(testCtx(), alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts.Active)
	assert.EqualValues(t, 0, counts.Received)

	counts, err = repo.GetConnCounts(testCtx(), carol.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Active)
}

func TestGetAllForUserSkipsDeadCounterparts(t *testing.T) {
	db := newTestDB(t)
	repo := newConnRepo(db)
	users := NewUserRepository(db, cache.NewMemory(), testLogger())
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")
	carol := newTestUser(t, db, "carol@example.com")

	connB, err := repo.Create(testCtx(), alice, bob)
	require.NoError(t, err)
	_, err = repo.Accept(testCtx(), bob, connB.ID)
	require.NoError(t, err)
	connC, err := repo.Create(testCtx(), alice, carol)
	require.NoError(t, err)
	_, err = repo.Accept(testCtx(), carol, connC.ID)
	require.NoError(t, err)

	conns, err := repo.GetAllForUser(testCtx(), alice, true, 0, 50)
	require.NoError(t, err)
	assert.Len(t, conns, 2)

	// A deactivated counterpart drops out of the listing.
	require.NoError(t, users.Deactivate(testCtx(), bob))
	conns, err = repo.GetAllForUser(testCtx(), alice, true, 0, 50)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, carol.ID, conns[0].OtherSide(alice.ID))
}

func TestConnCountsSkipDeadCounterparts(t *testing.T) {
	db := newTestDB(t)
	repo := newConnRepo(db)
	users := NewUserRepository(db, cache.NewMemory(), testLogger())
	alice := newTestUser(t, db, "alice@example.com")
	bob := newTestUser(t, db, "bob@example.com")

	_, err := repo.Create(testCtx(), alice, bob)
	require.NoError(t, err)

	counts, err := repo.GetConnCounts(testCtx(), alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts.Sent)

	// Counters must agree with the listing: a deactivated counterpart is
	// counted in neither.
	require.NoError(t, users.Deactivate(testCtx(), bob))
	require.NoError(t, repo.ExpireConnCounts(testCtx(), alice.ID))

	counts, err = repo.GetConnCounts(testCtx(), alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, counts.Sent)
	assert.EqualValues(t, 0, counts.Active)

	conns, err := repo.GetAllForUser(testCtx(), alice, false, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestGetAllForUserClampsCount(t *testing.T) {
	db := newTestDB(t)
	repo := newConnRepo(db)
	alice := newTestUser(t, db, "alice@example.com")
	for i := 0; i < 3; i++ {
		other := newTestUser(t, db, fmt.Sprintf("user%d@example.com", i))
		_, err := repo.Create(testCtx(), alice, other)
		require.NoError(t, err)
	}

	conns, err := repo.GetAllForUser(testCtx(), alice, false, 0, 0)
	require.NoError(t, err)
	assert.Len(t, conns, 1)

	conns, err = repo.GetAllForUser(testCtx(), alice, false, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, conns, 3)
}
