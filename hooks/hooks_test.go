package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	trace []string
}

func TestHooks_OrderedExecution(t *testing.T) {
	h := New[*event]()

	h.On("beforeInsert", func(ctx context.Context, e *event) error {
		e.trace = append(e.trace, "first")
		return nil
	})
	h.On("beforeInsert", func(ctx context.Context, e *event) error {
		e.trace = append(e.trace, "second")
		return nil
	})
	h.On("afterInsert", func(ctx context.Context, e *event) error {
		e.trace = append(e.trace, "after")
		return nil
	})

	e := &event{}
	require.NoError(t, h.Emit(context.Background(), "beforeInsert", e))
	require.NoError(t, h.Emit(context.Background(), "afterInsert", e))

	assert.Equal(t, []string{"first", "second", "after"}, e.trace)
	assert.Equal(t, 2, h.Count("beforeInsert"))
	assert.Equal(t, 1, h.Count("afterInsert"))
	assert.Equal(t, 0, h.Count("beforeRemove"))
}

func TestHooks_AbortsOnFirstError(t *testing.T) {
	h := New[*event]()
	boom := errors.New("boom")

	h.On("beforeSave", func(ctx context.Context, e *event) error {
		e.trace = append(e.trace, "ran")
		return boom
	})
	h.On("beforeSave", func(ctx context.Context, e *event) error {
		e.trace = append(e.trace, "must not run")
		return nil
	})

	e := &event{}
	err := h.Emit(context.Background(), "beforeSave", e)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"ran"}, e.trace)
}

func TestHooks_EmptyChainIsNoop(t *testing.T) {
	h := New[*event]()
	require.NoError(t, h.Emit(context.Background(), "anything", &event{}))
}

func TestHooks_ContextCancellation(t *testing.T) {
	h := New[*event]()
	h.On("x", func(ctx context.Context, e *event) error {
		e.trace = append(e.trace, "ran")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &event{}
	err := h.Emit(ctx, "x", e)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.trace)
}
