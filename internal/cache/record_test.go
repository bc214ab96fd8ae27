package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefSet_AddIsIdempotent(t *testing.T) {
	var s RefSet
	assert.True(t, s.Add("L2"))
	assert.True(t, s.Add("L1"))
	assert.False(t, s.Add("L2"))
	assert.Equal(t, RefSet{"L1", "L2"}, s)
	assert.True(t, s.Contains("L1"))
	assert.False(t, s.Contains("L3"))
}

func TestRefSet_Remove(t *testing.T) {
	s := NewRefSet("L3", "L1", "L2", "L1")
	require.Equal(t, RefSet{"L1", "L2", "L3"}, s)

	assert.True(t, s.Remove("L2"))
	assert.False(t, s.Remove("L2"))
	assert.False(t, s.Remove("missing"))
	assert.Equal(t, RefSet{"L1", "L3"}, s)

	assert.True(t, s.Remove("L1"))
	assert.True(t, s.Remove("L3"))
	assert.Empty(t, s)
}

func TestRefSet_UnsortedInput(t *testing.T) {
	s := RefSet{"L3", "L1", "L2", "L1"}
	assert.True(t, s.Contains("L1"))
	assert.True(t, s.Contains("L3"))
	assert.False(t, s.Contains("L4"))

	assert.True(t, s.Remove("L1"))
	assert.Equal(t, RefSet{"L2", "L3"}, s)
	assert.False(t, s.Contains("L1"))

	dup := RefSet{"L2", "L2"}
	assert.False(t, dup.Add("L2"))
	assert.Equal(t, RefSet{"L2"}, dup)

	shared := []string{"L2", "L1"}
	view := RefSet(shared)
	view.Remove("L2")
	assert.Equal(t, []string{"L2", "L1"}, shared, "normalising copies the caller's slice")
}

func TestRefSet_CloneNormalises(t *testing.T) {
	legacy := RefSet{"L2", "L1", "L2"}
	assert.Equal(t, RefSet{"L1", "L2"}, legacy.Clone())

	sortedDup := RefSet{"L1", "L1", "L2"}
	assert.Equal(t, RefSet{"L1", "L2"}, sortedDup.Clone())

	var empty RefSet
	assert.Nil(t, empty.Clone())

	orig := RefSet{"L1"}
	c := orig.Clone()
	c.Add("L0")
	assert.Equal(t, RefSet{"L1"}, orig)
}

func TestLoan_StampedUsesDueDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ttl := TTL{Account: time.Hour, Request: 2 * time.Hour, LoanGrace: 10 * time.Second}

	l := Loan{ID: "L1", DueDate: "1970-01-01T00:00:01"}.Stamped(now, ttl)
	assert.Equal(t, int64(11), l.Expiry)

	l = Loan{ID: "L1", DueDate: "2024-01-01T00:00:00Z"}.Stamped(now, TTL{})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix(), l.Expiry)

	l = Loan{ID: "L1", DueDate: "not a date"}.Stamped(now, ttl)
	assert.Equal(t, now.Add(2*time.Hour).Unix(), l.Expiry)
}

func TestAccountAndRequest_Stamped(t *testing.T) {
	now := time.Unix(0, 0)
	ttl := DefaultTTL()

	a := Account{ID: "U1", LoanIDs: RefSet{"L1"}}.Stamped(now, ttl)
	assert.Equal(t, int64(7200), a.Expiry)

	r := Request{ID: "R1"}.Stamped(now, ttl)
	assert.Equal(t, int64(7200), r.Expiry)
}

func TestAccount_Refs(t *testing.T) {
	a := Account{ID: "U1"}
	a.Refs(KindLoan).Add("L1")
	a.Refs(KindRequest).Add("R1")
	assert.Equal(t, RefSet{"L1"}, a.LoanIDs)
	assert.Equal(t, RefSet{"R1"}, a.RequestIDs)
}
