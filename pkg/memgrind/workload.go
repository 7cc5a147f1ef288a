package memgrind

import (
	"math/rand"

	"go-memgrind/pkg/allocator"
	"go-memgrind/util/stl"

	"github.com/pkg/errors"
)

// Workload is one synthetic allocation pattern. Every workload releases all
// memory it allocated before returning.
type Workload struct {
	Name        string
	Description string
	Run         func(g *grinder)
}

var Workloads = []Workload{
	{"A", "allocate 1 byte and free it immediately, 150 times", workloadA},
	{"B", "allocate 50 single bytes then free them, 3 times", workloadB},
	{"C", "randomly allocate or free single bytes until 50 allocations", workloadC},
	{"D", "randomly allocate 1..64 bytes or free until 50 allocations", workloadD},
	{"E", "allocate random sizes until 3 failures, then invalid frees", workloadE},
	{"F", "fill with 4 byte blocks, free 50 random ones, refill", workloadF},
}

// grinder runs workloads against one allocator and tallies rejected calls.
type grinder struct {
	a        Allocator
	rnd      *rand.Rand
	rejected map[allocator.Kind]int
	err      error
}

func newGrinder(a Allocator, seed int64) *grinder {
	return &grinder{
		a:        a,
		rnd:      rand.New(rand.NewSource(seed)),
		rejected: map[allocator.Kind]int{},
	}
}

func (g *grinder) malloc(size int) allocator.Pointer {
	p, err := g.a.Allocate(size, allocator.Caller(1))
	g.note(err)
	return p
}

func (g *grinder) free(p allocator.Pointer) {
	g.note(g.a.Free(p, allocator.Caller(1)))
}

// blockSize returns the payload capacity of the block behind p.
func (g *grinder) blockSize(p allocator.Pointer) int {
	if p == allocator.Nil {
		return 0
	}
	buf, err := g.a.Bytes(p)
	if err != nil && g.err == nil {
		g.err = errors.Wrapf(err, "failed to size block %v", p)
	}
	return len(buf)
}

func (g *grinder) note(err error) {
	if err == nil {
		return
	}
	if kind := allocator.KindOf(err); kind != 0 {
		g.rejected[kind]++
		return
	}
	if g.err == nil {
		g.err = err
	}
}

func workloadA(g *grinder) {
	for i := 0; i < 150; i++ {
		g.free(g.malloc(1))
	}
}

func workloadB(g *grinder) {
	var ptrs [50]allocator.Pointer
	for i := 0; i < 3; i++ {
		for j := range ptrs {
			ptrs[j] = g.malloc(1)
		}
		for j := range ptrs {
			g.free(ptrs[j])
		}
	}
}

func workloadC(g *grinder) {
	s := stl.NewStack[allocator.Pointer](50)
	for count := 0; count < 50; {
		if g.rnd.Intn(2) == 1 {
			s.Push(g.malloc(1))
			count++
			continue
		}
		if p, err := s.Pop(); err == nil {
			g.free(p)
		}
	}
	drain(g, s)
}

func workloadD(g *grinder) {
	s := stl.NewStack[allocator.Pointer](50)
	left := g.a.MaxRequest() - allocator.HeaderSize
	if left < 1+allocator.HeaderSize {
		return
	}
	for count := 0; count < 50; {
		if g.rnd.Intn(2) == 1 {
			size := g.rnd.Intn(64) + 1
			if size+allocator.HeaderSize > left {
				continue
			}
			s.Push(g.malloc(size))
			left -= size + allocator.HeaderSize
			count++
			continue
		}
		if p, err := s.Pop(); err == nil {
			left += g.blockSize(p) + allocator.HeaderSize
			g.free(p)
		}
	}
	drain(g, s)
}

func workloadE(g *grinder) {
	var ptrs []allocator.Pointer
	for fails := 0; fails < 3; {
		p := g.malloc(g.rnd.Intn(4100) + 1)
		if p == allocator.Nil {
			fails++
			continue
		}
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		g.free(p)
	}

	g.free(g.a.Start() - 1)
	g.free(allocator.Nil)
	if len(ptrs) > 0 {
		g.free(ptrs[0])
		g.free(ptrs[0] + 1)
	}
}

func workloadF(g *grinder) {
	ptrs := make([]allocator.Pointer, 512)
	for i := range ptrs {
		ptrs[i] = g.malloc(4)
	}

	picked := g.rnd.Perm(len(ptrs))[:50]
	for _, i := range picked {
		g.free(ptrs[i])
	}
	for _, i := range picked {
		ptrs[i] = g.malloc(4)
	}

	for _, p := range ptrs {
		g.free(p)
	}
}

func drain(g *grinder, s stl.Stack[allocator.Pointer]) {
	for s.Size() > 0 {
		p, _ := s.Pop()
		g.free(p)
	}
}
