package allocator

import (
	"testing"

	"go-memgrind/pkg/arena"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t testing.TB, capacity int) (*Allocator, *test.Hook) {
	t.Helper()

	ar, err := arena.New(capacity)
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	a, err := New(ar, &Options{Logger: log})
	require.NoError(t, err)
	return a, hook
}

func mustAllocate(t testing.TB, a *Allocator, size int) Pointer {
	t.Helper()
	p, err := a.Allocate(size, Caller(1))
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)
	return p
}

func requireBlocks(t testing.TB, a *Allocator, want ...Block) {
	t.Helper()
	got, err := a.Blocks()
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Size, got[i].Size, "block %d size", i)
		require.Equal(t, want[i].Active, got[i].Active, "block %d state", i)
	}
	require.NoError(t, a.Verify())
}

func requireKind(t testing.TB, hook *test.Hook, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.ErrorLevel, entry.Level)
	require.Equal(t, kind.String(), entry.Data["kind"])
}

func free(size int) Block   { return Block{Size: size} }
func active(size int) Block { return Block{Size: size, Active: true} }
