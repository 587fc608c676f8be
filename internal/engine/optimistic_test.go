package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setQuery(name string, args map[string]any, v any) OptimisticUpdate {
	return func(s *OptimisticLocalStore, _ map[string]any) error {
		return s.SetQuery(name, args, v)
	}
}

func TestOptimistic_WriteBeforeSubscriptionSeedsInitialValue(t *testing.T) {
	o, f := newTestObserver(t)
	f.SetInitial("q", "server-immediate")
	n := countNotifications(o)

	require.NoError(t, o.ApplyOptimisticUpdate("req-1", "send", nil, setQuery("q", map[string]any{}, "v")))
	assert.Equal(t, int32(0), n.Load(), "write to an unsubscribed key is invisible")

	require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
	assert.Equal(t, map[string]any{"a": "v"}, o.GetCurrentQueries())
	assert.Equal(t, int32(0), n.Load())
}

func TestOptimistic_CoalescesWritesIntoOneNotification(t *testing.T) {
	o, f := newTestObserver(t)
	require.NoError(t, o.SetQueries(map[string]QuerySpec{
		"a": q("q1", nil),
		"b": q("q2", nil),
	}))
	f.Latest("q1", nil).Deliver("one")
	n := countNotifications(o)

	err := o.ApplyOptimisticUpdate("req-1", "send", nil, func(s *OptimisticLocalStore, _ map[string]any) error {
		require.NoError(t, s.SetQuery("q1", nil, "one*"))
		require.NoError(t, s.SetQuery("q2", nil, "two*"))
		require.NoError(t, s.SetQuery("q1", nil, "one**"))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1), n.Load())
	assert.Equal(t, map[string]any{"a": "one**", "b": "two*"}, o.GetCurrentQueries())
}

func TestOptimistic_UnchangedWriteIsSilent(t *testing.T) {
	o, f := newTestObserver(t)
	require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
	f.Latest("q", nil).Deliver("same")
	n := countNotifications(o)

	require.NoError(t, o.ApplyOptimisticUpdate("req-1", "noop", nil, setQuery("q", nil, "same")))
	assert.Equal(t, int32(0), n.Load())
}

func TestOptimistic_AlreadySpecified(t *testing.T) {
	o, _ := newTestObserver(t)

	require.NoError(t, o.ApplyOptimisticUpdate("req-1", "sendMessage", nil, setQuery("q", nil, 1)))
	err := o.ApplyOptimisticUpdate("req-1", "sendMessage", nil, setQuery("q", nil, 2))

	require.Error(t, err)
	assert.True(t, IsAlreadySpecified(err))
	assert.ErrorIs(t, err, ErrAlreadySpecified)
	assert.Contains(t, err.Error(), "sendMessage")

	res, lerr := o.LocalQueryResult("q", nil)
	require.NoError(t, lerr)
	assert.Equal(t, 1, res.Value, "second update should not apply")

	o.SettleMutation("req-1", false)
	assert.NoError(t, o.ApplyOptimisticUpdate("req-1", "sendMessage", nil, setQuery("q", nil, 3)),
		"a settled request id may be reused")
}

func TestOptimistic_FailingUpdateRollsBack(t *testing.T) {
	o, f := newTestObserver(t)
	require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
	f.Latest("q", nil).Deliver("server")
	n := countNotifications(o)

	boom := errors.New("update failed")
	err := o.ApplyOptimisticUpdate("req-1", "send", nil, func(s *OptimisticLocalStore, _ map[string]any) error {
		require.NoError(t, s.SetQuery("q", nil, "opt"))
		require.NoError(t, s.SetQuery("held", nil, "opt"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int32(0), n.Load())
	assert.Equal(t, "server", o.GetCurrentQueries()["a"])
	res, _ := o.LocalQueryResult("held", nil)
	assert.False(t, res.Loaded)
	assert.Equal(t, 0, o.Stats().InFlight)
}

func TestOptimistic_InvalidArguments(t *testing.T) {
	o, _ := newTestObserver(t)

	err := o.ApplyOptimisticUpdate("req-1", "send", nil, setQuery("q", map[string]any{"x": math.Inf(-1)}, "v"))
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestOptimistic_ArgsPassedToUpdate(t *testing.T) {
	o, _ := newTestObserver(t)

	var got map[string]any
	require.NoError(t, o.ApplyOptimisticUpdate("req-1", "send", map[string]any{"body": "hi"},
		func(_ *OptimisticLocalStore, args map[string]any) error {
			got = args
			return nil
		}))
	assert.Equal(t, map[string]any{"body": "hi"}, got)
}

func TestOptimistic_StoreReads(t *testing.T) {
	o, f := newTestObserver(t)
	require.NoError(t, o.SetQueries(map[string]QuerySpec{
		"a": q("list", map[string]any{"page": 2}),
		"b": q("list", map[string]any{"page": 1}),
		"c": q("other", nil),
	}))
	f.Latest("list", map[string]any{"page": 1}).Deliver([]any{"x"})
	f.Latest("list", map[string]any{"page": 2}).Deliver([]any{"y"})

	err := o.ApplyOptimisticUpdate("req-1", "append", nil, func(s *OptimisticLocalStore, _ map[string]any) error {
		v, ok := s.GetQuery("list", map[string]any{"page": 1})
		assert.True(t, ok)
		assert.Equal(t, []any{"x"}, v)

		_, ok = s.GetQuery("other", nil)
		assert.False(t, ok, "not loaded")

		all := s.GetAllQueries("list")
		require.Len(t, all, 2)
		assert.Equal(t, map[string]any{"page": int64(1)}, all[0].Args)
		assert.Equal(t, map[string]any{"page": int64(2)}, all[1].Args)

		for _, r := range all {
			if err := s.SetQuery("list", r.Args, append(r.Value.([]any), "new")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"x", "new"}, o.GetCurrentQueries()["b"])
	assert.Equal(t, []any{"y", "new"}, o.GetCurrentQueries()["a"])
}

func TestOptimistic_StoreClosedAfterUpdate(t *testing.T) {
	o, _ := newTestObserver(t)

	var leaked *OptimisticLocalStore
	require.NoError(t, o.ApplyOptimisticUpdate("req-1", "send", nil, func(s *OptimisticLocalStore, _ map[string]any) error {
		leaked = s
		return nil
	}))

	assert.ErrorIs(t, leaked.SetQuery("q", nil, "late"), errStoreClosed)
}

func TestSettleMutation(t *testing.T) {
	tests := []struct {
		name       string
		failed     bool
		serverWins bool
		want       any
		wantNotify int32
	}{
		{"failure restores previous value", true, false, "server-1", 1},
		{"success keeps optimistic value", false, false, "opt", 0},
		{"failure after server overwrite keeps server value", true, true, "server-2", 0},
		{"success after server overwrite keeps server value", false, true, "server-2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, f := newTestObserver(t)
			require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
			w := f.Latest("q", nil)
			w.Deliver("server-1")

			require.NoError(t, o.ApplyOptimisticUpdate("req-1", "send", nil, setQuery("q", nil, "opt")))
			assert.Equal(t, "opt", o.GetCurrentQueries()["a"])

			if tt.serverWins {
				w.Deliver("server-2")
			}

			n := countNotifications(o)
			o.SettleMutation("req-1", tt.failed)

			assert.Equal(t, tt.want, o.GetCurrentQueries()["a"])
			assert.Equal(t, tt.wantNotify, n.Load())
			assert.Equal(t, 0, o.Stats().InFlight)
		})
	}
}

func TestSettleMutation_EvictsHeldWrites(t *testing.T) {
	for _, failed := range []bool{false, true} {
		o, _ := newTestObserver(t)
		require.NoError(t, o.ApplyOptimisticUpdate("req-1", "send", nil, setQuery("q", nil, "held")))

		o.SettleMutation("req-1", failed)

		require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
		assert.Equal(t, map[string]any{"a": nil}, o.GetCurrentQueries(), "failed=%v", failed)
	}
}

func TestSettleMutation_RestoresRepeatedWritesInOrder(t *testing.T) {
	o, f := newTestObserver(t)
	require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
	f.Latest("q", nil).Deliver(0)

	require.NoError(t, o.ApplyOptimisticUpdate("req-1", "incr", nil, func(s *OptimisticLocalStore, _ map[string]any) error {
		for i := 1; i <= 3; i++ {
			if err := s.SetQuery("q", nil, i); err != nil {
				return err
			}
		}
		return nil
	}))
	assert.Equal(t, 3, o.GetCurrentQueries()["a"])

	o.SettleMutation("req-1", true)
	assert.Equal(t, 0, o.GetCurrentQueries()["a"])
}

func TestSettleMutation_StackedLayers(t *testing.T) {
	o, f := newTestObserver(t)
	require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
	f.Latest("q", nil).Deliver("server")

	require.NoError(t, o.ApplyOptimisticUpdate("req-a", "m", nil, setQuery("q", nil, "a")))
	require.NoError(t, o.ApplyOptimisticUpdate("req-b", "m", nil, setQuery("q", nil, "b")))

	o.SettleMutation("req-a", true)
	assert.Equal(t, "b", o.GetCurrentQueries()["a"], "later write stays visible")

	o.SettleMutation("req-b", true)
	assert.Equal(t, "server", o.GetCurrentQueries()["a"], "failed earlier write is skipped on restore")
}

func TestSettleMutation_UnknownRequestIgnored(t *testing.T) {
	o, _ := newTestObserver(t)
	n := countNotifications(o)

	o.SettleMutation("never-applied", true)
	assert.Equal(t, int32(0), n.Load())
}

func TestSettleMutation_ReleasedKey(t *testing.T) {
	o, f := newTestObserver(t)
	require.NoError(t, o.SetQueries(map[string]QuerySpec{"a": q("q", nil)}))
	f.Latest("q", nil).Deliver("server")
	require.NoError(t, o.ApplyOptimisticUpdate("req-1", "m", nil, setQuery("q", nil, "opt")))

	require.NoError(t, o.SetQueries(map[string]QuerySpec{}))
	o.SettleMutation("req-1", true)

	assert.Equal(t, 0, o.Stats().CacheEntries)
}

func TestOptimistic_AfterDestroy(t *testing.T) {
	o, _ := newTestObserver(t)
	o.Destroy()

	err := o.ApplyOptimisticUpdate("req-1", "m", nil, setQuery("q", nil, 1))
	assert.ErrorIs(t, err, ErrDestroyed)
	o.SettleMutation("req-1", true)
}
