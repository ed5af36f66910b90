package research

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyGate_Blocks(t *testing.T) {
	gate := NewConcurrencyGate(1)

	release, err := gate.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, gate.Held())

	acquired := make(chan struct{})
	go func() {
		r, err := gate.Acquire(context.Background())
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while the permit is held")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked")
	}
	assert.Equal(t, 1, gate.Peak())
}

func TestConcurrencyGate_ReleaseIsIdempotent(t *testing.T) {
	gate := NewConcurrencyGate(2)

	release, err := gate.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()
	assert.Equal(t, 0, gate.Held())

	// A double release must not have freed an extra permit.
	r1, err := gate.Acquire(context.Background())
	require.NoError(t, err)
	r2, err := gate.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = gate.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r1()
	r2()
	assert.Equal(t, 2, gate.Peak())
}

func TestConcurrencyGate_CancelledContext(t *testing.T) {
	gate := NewConcurrencyGate(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release, err := gate.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, release)
	release()
	assert.Equal(t, 0, gate.Held())
}

func TestNewConcurrencyGate_MinimumCapacity(t *testing.T) {
	assert.Equal(t, 1, NewConcurrencyGate(0).Capacity())
	assert.Equal(t, 1, NewConcurrencyGate(-3).Capacity())
	assert.Equal(t, 4, NewConcurrencyGate(4).Capacity())
}
