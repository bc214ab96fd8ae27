package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainFailure struct{}

func (plainFailure) Enqueue(context.Context, string) error { return errors.New("unreachable") }

func TestMemory_PublishAndDrain(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Enqueue(context.Background(), "U1"))
	require.NoError(t, m.Enqueue(context.Background(), "U1"))
	assert.Equal(t, []string{"U1", "U1"}, m.Published())
	assert.Equal(t, []string{"U1", "U1"}, m.Drain())
	assert.Empty(t, m.Published())
}

func TestInstrumented_WrapsPlainErrors(t *testing.T) {
	err := Instrument(plainFailure{}).Enqueue(context.Background(), "U9")
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "U9", qe.AccountID)
	assert.Contains(t, err.Error(), "unreachable")
}

func TestInstrumented_KeepsQueueErrors(t *testing.T) {
	m := NewMemory()
	m.Fail = errors.New("throttled")
	err := Instrument(m).Enqueue(context.Background(), "U1")
	var qe *Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, `enqueue account "U1" for reconciliation: throttled`, err.Error())
}
