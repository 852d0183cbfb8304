package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/model"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/txn"
	"wallet-custody/pkg/utils/lock"
)

type status struct {
	confirmations uint64
	failed, found bool
	err           error
}

type fakeTracker map[string]status

func (f fakeTracker) Confirmations(_ context.Context, hash string) (uint64, bool, bool, error) {
	s := f[hash]
	return s.confirmations, s.failed, s.found, s.err
}

func seed(t *testing.T, repo *repository.Memory, chainID chain.ChainID, hashes ...string) {
	for _, h := range hashes {
		require.NoError(t, repo.Save(context.Background(), &model.TxRecord{Hash: h, ChainID: string(chainID), From: "0x1"}))
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	seed(t, repo, chain.ETH, "confirmed", "shallow", "unknown", "broken")
	seed(t, repo, chain.TRON, "reverted")
	seed(t, repo, chain.AVAX, "no-tracker")

	trackers := map[chain.ChainID]txn.Tracker{
		chain.ETH: fakeTracker{
			"confirmed": {confirmations: 12, found: true},
			"shallow":   {confirmations: 3, found: true},
			"broken":    {err: errors.New("rpc down")},
		},
		chain.TRON: fakeTracker{
			"reverted": {confirmations: 2, failed: true, found: true},
		},
	}

	res, err := NewReconciler(repo, trackers, 12, 0).Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Checked: 6, Confirmed: 1, Failed: 1, Pending: 4}, res)

	_, err = repo.Get(ctx, string(chain.ETH), "confirmed")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)

	shallow, err := repo.Get(ctx, string(chain.ETH), "shallow")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), shallow.Confirmations)

	reverted, err := repo.Get(ctx, string(chain.TRON), "reverted")
	require.NoError(t, err)
	assert.True(t, reverted.IsError)
}

func TestStart_StopsOnCancel(t *testing.T) {
	repo := repository.NewMemory()
	seed(t, repo, chain.ETH, "h")
	r := NewReconciler(repo, map[chain.ChainID]txn.Tracker{
		chain.ETH: fakeTracker{"h": {confirmations: 1, found: true}},
	}, 1, time.Second, WithLocker(lock.NewLocalLock()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	assert.Eventually(t, func() bool {
		left, _ := repo.ListPending(context.Background(), 0)
		return len(left) == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestRunScheduled_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()
	seed(t, repo, chain.ETH, "h")

	locks := lock.NewLocalLock()
	r := NewReconciler(repo, map[chain.ChainID]txn.Tracker{
		chain.ETH: fakeTracker{"h": {confirmations: 5, found: true}},
	}, 1, time.Second, WithLocker(locks))

	ok, err := locks.Acquire(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	r.runScheduled(ctx)
	left, _ := repo.ListPending(ctx, 0)
	assert.Len(t, left, 1, "另一实例持有锁时本轮跳过")

	require.NoError(t, locks.Release(ctx, lockKey))
	r.runScheduled(ctx)
	left, _ = repo.ListPending(ctx, 0)
	assert.Empty(t, left)
}
