package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anoixa/photo-mailer/cache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(Config{NumCounters: 1000, MaxCost: 1000, BufferItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMemory_SetGetDelete(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "key", "value", 10*time.Second))

	var got string
	require.NoError(t, m.Get(ctx, "key", &got))
	assert.Equal(t, "value", got)

	exists, err := m.Exists(ctx, "key")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, m.Delete(ctx, "key"))
	err = m.Get(ctx, "key", &got)
	assert.True(t, types.IsCacheMiss(err))
}

func TestMemory_Struct(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	type entry struct {
		Name  string
		Value int
	}
	require.NoError(t, m.Set(ctx, "struct", entry{Name: "test", Value: 42}, time.Minute))

	var got entry
	require.NoError(t, m.Get(ctx, "struct", &got))
	assert.Equal(t, entry{Name: "test", Value: 42}, got)
}

func TestMemory_Miss(t *testing.T) {
	m := newTestMemory(t)

	var v string
	err := m.Get(context.Background(), "missing", &v)
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	exists, err := m.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, "memory", m.Name())
}

func TestMemory_SetNX(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	ok, err := m.SetNX(ctx, "once", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "once", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	var got int
	require.NoError(t, m.Get(ctx, "once", &got))
	assert.Equal(t, 1, got)
}

func TestMemory_SetNXConcurrent(t *testing.T) {
	m := newTestMemory(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.SetNX(ctx, "race", true, time.Minute)
			if err == nil && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}
