package link_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/cachesync/internal/cache"
	"github.com/gyaneshwarpardhi/cachesync/internal/cachetest"
	"github.com/gyaneshwarpardhi/cachesync/internal/link"
	"github.com/gyaneshwarpardhi/cachesync/internal/queue"
	"github.com/gyaneshwarpardhi/cachesync/internal/store/memory"
)

type fixture struct {
	accounts *cachetest.Faulty[cache.Account]
	queue    *queue.Memory
	mgr      *link.Manager
}

func newFixture(t *testing.T, existing ...cache.Account) fixture {
	t.Helper()
	table := memory.NewTable[cache.Account](cache.DefaultTTL())
	for _, a := range existing {
		require.NoError(t, table.Put(context.Background(), a))
	}
	accounts := cachetest.NewFaulty[cache.Account](table)
	q := queue.NewMemory()
	return fixture{accounts: accounts, queue: q, mgr: link.NewManager(accounts, q)}
}

func (f fixture) account(t *testing.T, id string) cache.Account {
	t.Helper()
	a, err := f.accounts.Next.Get(context.Background(), id)
	require.NoError(t, err)
	return a
}

func TestLink_AddsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, cache.Account{ID: "U1"})

	for i := 0; i < 2; i++ {
		out, err := f.mgr.Link(ctx, "U1", "L1", cache.KindLoan)
		require.NoError(t, err)
		assert.Equal(t, link.Linked, out)
	}
	out, err := f.mgr.Link(ctx, "U1", "R1", cache.KindRequest)
	require.NoError(t, err)
	assert.Equal(t, link.Linked, out)

	a := f.account(t, "U1")
	assert.Equal(t, cache.RefSet{"L1"}, a.LoanIDs)
	assert.Equal(t, cache.RefSet{"R1"}, a.RequestIDs)
	assert.Empty(t, f.queue.Published())
}

func TestLink_DefersMissingAccount(t *testing.T) {
	f := newFixture(t)

	out, err := f.mgr.Link(context.Background(), "U1", "L1", cache.KindLoan)
	require.NoError(t, err)
	assert.Equal(t, link.Deferred, out)
	assert.Equal(t, []string{"U1"}, f.queue.Published())
	assert.Zero(t, f.accounts.Calls("put"))
}

func TestLink_QueueFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.queue.Fail = errors.New("queue down")

	_, err := f.mgr.Link(context.Background(), "U1", "L1", cache.KindLoan)
	var qe *queue.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "U1", qe.AccountID)
}

func TestLink_StorageFailures(t *testing.T) {
	boom := errors.New("boom")

	f := newFixture(t, cache.Account{ID: "U1"})
	f.accounts.FailOn("get", boom)
	_, err := f.mgr.Link(context.Background(), "U1", "L1", cache.KindLoan)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.queue.Published(), "a read failure must not look like a missing account")

	f = newFixture(t, cache.Account{ID: "U1"})
	f.accounts.FailOn("put", boom)
	_, err = f.mgr.Link(context.Background(), "U1", "L1", cache.KindLoan)
	require.ErrorIs(t, err, boom)
}

func TestUnlink_RemovesID(t *testing.T) {
	f := newFixture(t, cache.Account{ID: "U1", LoanIDs: cache.NewRefSet("L1", "L2")})

	out, err := f.mgr.Unlink(context.Background(), "U1", "L1", cache.KindLoan)
	require.NoError(t, err)
	assert.Equal(t, link.Unlinked, out)
	assert.Equal(t, cache.RefSet{"L2"}, f.account(t, "U1").LoanIDs)

	out, err = f.mgr.Unlink(context.Background(), "U1", "L1", cache.KindLoan)
	require.NoError(t, err)
	assert.Equal(t, link.Unlinked, out)
	assert.Equal(t, cache.RefSet{"L2"}, f.account(t, "U1").LoanIDs)
}

func TestUnlink_MissingAccountIsNotEnqueued(t *testing.T) {
	f := newFixture(t)

	out, err := f.mgr.Unlink(context.Background(), "U1", "R1", cache.KindRequest)
	require.NoError(t, err)
	assert.Equal(t, link.NoAccount, out)
	assert.Empty(t, f.queue.Published())
	assert.Zero(t, f.accounts.Calls("put"))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "linked", link.Linked.String())
	assert.Equal(t, "deferred", link.Deferred.String())
	assert.Equal(t, "unlinked", link.Unlinked.String())
	assert.Equal(t, "no_account", link.NoAccount.String())
	assert.Equal(t, "outcome(0)", link.Outcome(0).String())
}

// rawAccounts keeps rows exactly as written, like a table populated by the
// bulk loader, which appends ids in arrival order.
type rawAccounts struct {
	rows map[string]cache.Account
}

func (r *rawAccounts) Get(_ context.Context, id string) (cache.Account, error) {
	a, ok := r.rows[id]
	if !ok {
		return cache.Account{}, cache.ErrNotFound
	}
	return a, nil
}

func (r *rawAccounts) Put(_ context.Context, a cache.Account) error {
	r.rows[a.ID] = a
	return nil
}

func (r *rawAccounts) Delete(_ context.Context, id string) error {
	delete(r.rows, id)
	return nil
}

func TestUnlink_RemovesFromUnsortedAccount(t *testing.T) {
	ctx := context.Background()
	store := &rawAccounts{rows: map[string]cache.Account{
		"U1": {ID: "U1", LoanIDs: cache.RefSet{"L3", "L1"}, RequestIDs: cache.RefSet{"R2", "R1", "R2"}},
	}}
	mgr := link.NewManager(store, queue.NewMemory())

	out, err := mgr.Unlink(ctx, "U1", "L1", cache.KindLoan)
	require.NoError(t, err)
	assert.Equal(t, link.Unlinked, out)
	assert.Equal(t, cache.RefSet{"L3"}, store.rows["U1"].LoanIDs)

	_, err = mgr.Unlink(ctx, "U1", "R2", cache.KindRequest)
	require.NoError(t, err)
	assert.Equal(t, cache.RefSet{"R1"}, store.rows["U1"].RequestIDs)
}

func TestLink_DedupsUnsortedAccount(t *testing.T) {
	ctx := context.Background()
	store := &rawAccounts{rows: map[string]cache.Account{
		"U1": {ID: "U1", LoanIDs: cache.RefSet{"L3", "L1", "L3"}},
	}}
	mgr := link.NewManager(store, queue.NewMemory())

	out, err := mgr.Link(ctx, "U1", "L2", cache.KindLoan)
	require.NoError(t, err)
	assert.Equal(t, link.Linked, out)
	assert.Equal(t, cache.RefSet{"L1", "L2", "L3"}, store.rows["U1"].LoanIDs)

	_, err = mgr.Link(ctx, "U1", "L3", cache.KindLoan)
	require.NoError(t, err)
	assert.Equal(t, cache.RefSet{"L1", "L2", "L3"}, store.rows["U1"].LoanIDs)
}
