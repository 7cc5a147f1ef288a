package allocator

import (
	"math/rand"
	"path/filepath"
	"testing"

	"go-memgrind/pkg/arena"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLaysOutSingleFreeBlock(t *testing.T) {
	a, hook := newTestAllocator(t, arena.DefaultCapacity)
	requireBlocks(t, a, free(arena.DefaultCapacity-HeaderSize))
	require.Empty(t, hook.AllEntries())
}

func TestInitIsIdempotent(t *testing.T) {
	a, _ := newTestAllocator(t, arena.DefaultCapacity)

	fresh, err := a.init()
	require.NoError(t, err)
	require.False(t, fresh)

	a.initialized = false
	fresh, err = a.init()
	require.NoError(t, err)
	require.False(t, fresh)

	requireBlocks(t, a, free(4094))
}

func TestNewInvalidCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, MaxBlockSize + HeaderSize + 1, 8192} {
		ar, err := arena.New(capacity)
		require.NoError(t, err)
		_, err = New(ar, nil)
		require.True(t, errors.Is(err, ErrInvalidCapacity), "capacity %d", capacity)
	}

	a, _ := newTestAllocator(t, MaxBlockSize+HeaderSize)
	requireBlocks(t, a, free(MaxBlockSize))
}

func TestAllocateBoundaries(t *testing.T) {
	a, hook := newTestAllocator(t, 4096)

	p, err := a.Allocate(4095, Here())
	requireKind(t, hook, err, KindRequestTooLarge)
	require.Equal(t, Nil, p)
	require.Equal(t, 4095, hook.LastEntry().Data["request"])
	require.Equal(t, 4094, hook.LastEntry().Data["limit"])

	p, err = a.Allocate(0, Here())
	requireKind(t, hook, err, KindRequestTooSmall)
	require.Equal(t, Nil, p)

	p, err = a.Allocate(-3, Here())
	requireKind(t, hook, err, KindRequestTooSmall)
	require.Equal(t, Nil, p)

	requireBlocks(t, a, free(4094))

	p = mustAllocate(t, a, 4094)
	require.Equal(t, a.Start()+HeaderSize, p)
	requireBlocks(t, a, active(4094))

	_, err = a.Allocate(1, Here())
	requireKind(t, hook, err, KindOutOfMemory)
}

func TestAllocateFillsNearFit(t *testing.T) {
	a, _ := newTestAllocator(t, 4096)

	// A remainder of HeaderSize bytes cannot host a block of its own.
	mustAllocate(t, a, 4092)
	requireBlocks(t, a, active(4094))
}

func TestAllocateSplits(t *testing.T) {
	a, _ := newTestAllocator(t, 4096)

	mustAllocate(t, a, 4091)
	requireBlocks(t, a, active(4091), free(1))

	mustAllocate(t, a, 1)
	requireBlocks(t, a, active(4091), active(1))
}

func TestAllocateFirstFit(t *testing.T) {
	a, _ := newTestAllocator(t, 4096)

	p1 := mustAllocate(t, a, 10)
	mustAllocate(t, a, 10)
	p3 := mustAllocate(t, a, 10)
	mustAllocate(t, a, 10)

	require.NoError(t, a.Free(p1, Here()))
	require.NoError(t, a.Free(p3, Here()))

	require.Equal(t, p1, mustAllocate(t, a, 5))
	requireBlocks(t, a,
		active(5), free(3), active(10), free(10), active(10), free(4094-4*12),
	)

	// The 3 byte remainder is skipped, the freed third block is next.
	require.Equal(t, p3, mustAllocate(t, a, 5))
}

func TestAllocateExhaustion(t *testing.T) {
	a, hook := newTestAllocator(t, 4096)

	count := 0
	for {
		p, err := a.Allocate(1, Here())
		if err != nil {
			requireKind(t, hook, err, KindOutOfMemory)
			require.Equal(t, Nil, p)
			break
		}
		count++
	}

	require.Equal(t, 4096/(HeaderSize+1), count)
	require.NoError(t, a.Verify())

	stats, err := a.Stats()
	require.NoError(t, err)
	require.Equal(t, count, stats.ActiveBlocks)
	require.Zero(t, stats.FreeBlocks)
	require.Equal(t, 4096, stats.ActiveBytes+stats.Overhead)
}

func TestFreeCoalescesFully(t *testing.T) {
	orders := map[string]func([]Pointer) []Pointer{
		"forward": func(p []Pointer) []Pointer { return p },
		"reverse": func(p []Pointer) []Pointer {
			r := make([]Pointer, len(p))
			for i := range p {
				r[len(p)-1-i] = p[i]
			}
			return r
		},
		"random": func(p []Pointer) []Pointer {
			rnd := rand.New(rand.NewSource(42))
			rnd.Shuffle(len(p), func(i, j int) { p[i], p[j] = p[j], p[i] })
			return p
		},
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			a, _ := newTestAllocator(t, 4096)

			var ptrs []Pointer
			for {
				p, err := a.Allocate(1, Here())
				if err != nil {
					break
				}
				ptrs = append(ptrs, p)
			}

			for _, p := range order(ptrs) {
				require.NoError(t, a.Free(p, Here()))
				require.NoError(t, a.Verify())
			}
			requireBlocks(t, a, free(4094))
		})
	}
}

func TestFreeMergesThreeBlocks(t *testing.T) {
	a, _ := newTestAllocator(t, 4096)

	p1 := mustAllocate(t, a, 10)
	p2 := mustAllocate(t, a, 10)
	p3 := mustAllocate(t, a, 10)
	mustAllocate(t, a, 10)

	require.NoError(t, a.Free(p1, Here()))
	require.NoError(t, a.Free(p3, Here()))
	requireBlocks(t, a, free(10), active(10), free(10), active(10), free(4046))

	require.NoError(t, a.Free(p2, Here()))
	requireBlocks(t, a, free(34), active(10), free(4046))
}

func TestFreeDoubleFree(t *testing.T) {
	a, hook := newTestAllocator(t, 4096)

	p := mustAllocate(t, a, 10)
	require.NoError(t, a.Free(p, Here()))
	requireBlocks(t, a, free(4094))

	err := a.Free(p, Here())
	requireKind(t, hook, err, KindDoubleFree)
	require.True(t, errors.Is(err, ErrDoubleFree))
	requireBlocks(t, a, free(4094))
}

func TestFreeForeignPointers(t *testing.T) {
	a, hook := newTestAllocator(t, 4096)
	p := mustAllocate(t, a, 10)

	requireKind(t, hook, a.Free(a.Start()-1, Here()), KindOutOfArenaFree)
	requireKind(t, hook, a.Free(a.End()+1, Here()), KindOutOfArenaFree)
	requireKind(t, hook, a.Free(Nil, Here()), KindNullFree)
	requireKind(t, hook, a.Free(p+1, Here()), KindUnknownPointerFree)
	requireKind(t, hook, a.Free(a.Start(), Here()), KindUnknownPointerFree)
	requireKind(t, hook, a.Free(a.End(), Here()), KindUnknownPointerFree)

	other, _ := newTestAllocator(t, 4096)
	q := mustAllocate(t, other, 10)
	requireKind(t, hook, a.Free(q, Here()), KindOutOfArenaFree)

	requireBlocks(t, a, active(10), free(4082))
}

func TestDiagnosticsCarryLocation(t *testing.T) {
	a, hook := newTestAllocator(t, 4096)

	loc := Location{File: "workload.go", Line: 42}
	err := a.Free(Nil, loc)
	require.EqualError(t, err, "Error at line 42 in file workload.go: Cannot free a NULL pointer")

	entry := hook.LastEntry()
	require.Equal(t, "workload.go", entry.Data["file"])
	require.Equal(t, 42, entry.Data["line"])
	require.Equal(t, "Cannot free a NULL pointer", entry.Message)

	_, err = a.Allocate(0, Here())
	require.Equal(t, "allocator_test.go", filepath.Base(hook.LastEntry().Data["file"].(string)))
	assert.Contains(t, err.Error(), "Minimum request: 1; your request: 0")
	require.Equal(t, ErrRequestTooSmall, errors.Cause(err))
}

func TestRoundTrip(t *testing.T) {
	a, _ := newTestAllocator(t, 4096)
	rnd := rand.New(rand.NewSource(7))

	want := map[Pointer][]byte{}
	for i := 0; i < 40; i++ {
		size := rnd.Intn(64) + 1
		p := mustAllocate(t, a, size)

		buf, err := a.Bytes(p)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(buf), size)
		rnd.Read(buf)
		want[p] = append([]byte(nil), buf...)

		if i%3 == 0 {
			require.NoError(t, a.Free(p, Here()))
			delete(want, p)
		}
	}

	for p, data := range want {
		buf, err := a.Bytes(p)
		require.NoError(t, err)
		require.Equal(t, data, buf)
	}
	require.NoError(t, a.Verify())
}

func TestVerifyDetectsCorruption(t *testing.T) {
	ar, err := arena.New(4096)
	require.NoError(t, err)
	a, err := New(ar, &Options{Logger: nil})
	require.NoError(t, err)
	mustAllocate(t, a, 10)

	require.NoError(t, a.setHeader(0, header{size: 20, active: true}))
	require.True(t, errors.Is(a.Verify(), ErrCorrupt))

	require.NoError(t, a.setHeader(0, header{size: 10, active: true}))
	require.NoError(t, a.Verify())

	require.NoError(t, a.setHeader(12, header{size: 0}))
	require.True(t, errors.Is(a.Verify(), ErrCorrupt))

	raw, err := ar.Slice(0, HeaderSize)
	require.NoError(t, err)
	raw[1] = 0xff
	require.True(t, errors.Is(a.Verify(), ErrCorrupt))
}

func TestNewReattachesExistingLayout(t *testing.T) {
	ar, err := arena.New(4096)
	require.NoError(t, err)

	first, err := New(ar, nil)
	require.NoError(t, err)
	p := first.Start() + 2
	require.Equal(t, p, mustAllocate(t, first, 100))

	second, err := New(ar, nil)
	require.NoError(t, err)
	requireBlocks(t, second, active(100), free(3992))
	require.NoError(t, second.Free(second.Start()+2, Here()))
	requireBlocks(t, second, free(4094))
}

func TestNewRejectsCorruptLayout(t *testing.T) {
	ar, err := arena.New(64)
	require.NoError(t, err)
	raw, err := ar.Slice(0, HeaderSize)
	require.NoError(t, err)
	bin.PutUint16(raw, 30)

	_, err = New(ar, nil)
	require.True(t, errors.Is(err, ErrCorrupt))
}
