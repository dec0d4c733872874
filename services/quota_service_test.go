package services

import (
	"cloudnest/repository"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)

	_, err := env.quota.Commit(ctx, owner, 900)
	require.NoError(t, err)

	decision, err := env.quota.Reserve(ctx, owner, 100)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.EqualValues(t, 100, decision.Remaining)

	decision, err = env.quota.Reserve(ctx, owner, 101)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.EqualValues(t, 100, decision.Remaining)

	// reserving does not move the counter
	assert.EqualValues(t, 900, env.used(t, owner))

	_, err = env.quota.Reserve(ctx, owner, -1)
	assert.True(t, IsKind(err, KindBadRequest))

	_, err = env.quota.Reserve(ctx, "ghost", 1)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestReserve_OverQuotaReportsZeroRemaining(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 100)

	_, err := env.quota.Commit(ctx, owner, 150)
	require.NoError(t, err)

	decision, err := env.quota.Reserve(ctx, owner, 1)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Zero(t, decision.Remaining)

	decision, err = env.quota.Reserve(ctx, owner, 0)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCommit_ClampsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)

	used, err := env.quota.Commit(ctx, owner, 40)
	require.NoError(t, err)
	assert.EqualValues(t, 40, used)

	used, err = env.quota.Commit(ctx, owner, -100)
	require.NoError(t, err)
	assert.Zero(t, used)
	assert.Zero(t, env.used(t, owner))

	_, err = env.quota.Commit(ctx, "ghost", 10)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	owner := env.newUser(t, 5000)
	env.upload(t, owner, nil, "a.txt", "12345")

	status, err := env.quota.Status(context.Background(), owner)
	require.NoError(t, err)
	assert.EqualValues(t, 5, status.Used)
	assert.EqualValues(t, 5000, status.Limit)
}

func TestRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.newUser(t, 1000)
	bob := env.newUser(t, 1000)

	env.upload(t, alice, nil, "a.txt", "aaaa")
	env.upload(t, alice, nil, "b.txt", "bb")
	env.upload(t, bob, nil, "c.txt", "c")

	_, err := env.quota.Commit(ctx, alice, 500)
	require.NoError(t, err)
	_, err = env.quota.Commit(ctx, bob, -1)
	require.NoError(t, err)

	total, err := env.quota.Recompute(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
	assert.EqualValues(t, 6, env.used(t, alice))
	assert.Zero(t, env.used(t, bob))

	n, err := env.quota.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 1, env.used(t, bob))
}

// splitWrites fails any recompute that would read and write the counter in
// two separate steps.
type splitWrites struct {
	repository.UserRepository
	t *testing.T
}

func (s splitWrites) SetStorageUsed(context.Context, string, int64) error {
	s.t.Error("recompute must sum and store in one repository call")
	return nil
}

func TestRecompute_SingleStoreCall(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.newUser(t, 1000)
	env.upload(t, owner, nil, "a.txt", "abc")

	_, err := env.quota.Commit(ctx, owner, 40)
	require.NoError(t, err)

	env.quota.users = splitWrites{UserRepository: env.store.Users, t: t}
	total, err := env.quota.Recompute(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.EqualValues(t, 3, env.used(t, owner))

	_, err = env.quota.Recompute(ctx, "missing-user")
	assert.True(t, IsKind(err, KindNotFound), "got %v", err)
}

func TestRecomputeAll_StopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := env.quota.RecomputeAll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
