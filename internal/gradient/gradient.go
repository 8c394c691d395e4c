// Package gradient holds the ordered key -> tensor map produced by a backward pass.
package gradient

import (
	"strconv"

	"gonum.org/v1/gonum/mat"
)

type entry struct {
	m      *mat.Dense
	arena  []float64 // backing gradient arena, nil when m is standalone
	offset int
}

// Gradient maps composite keys ("0_W", "1_b", ...) to gradient tensors.
//
// Keys keep their insertion order. Entries may be views into a shared
// gradient arena; Flattened returns that arena range directly when the
// entries tile it contiguously.
type Gradient struct {
	keys    []string
	entries map[string]entry
}

// New returns an empty gradient.
func New() *Gradient {
	return &Gradient{entries: make(map[string]entry)}
}

func (g *Gradient) put(key string, e entry) {
	if _, ok := g.entries[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.entries[key] = e
}

// Set stores m under key. Re-setting a key keeps its original position.
func (g *Gradient) Set(key string, m *mat.Dense) {
	g.put(key, entry{m: m})
}

// SetView stores m under key and records that m aliases arena starting at offset.
func (g *Gradient) SetView(key string, m *mat.Dense, arena []float64, offset int) {
	g.put(key, entry{m: m, arena: arena, offset: offset})
}

// Get returns the tensor stored under key.
func (g *Gradient) Get(key string) (*mat.Dense, bool) {
	e, ok := g.entries[key]
	return e.m, ok
}

// Keys returns the keys in insertion order.
func (g *Gradient) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Len returns the number of entries.
func (g *Gradient) Len() int {
	return len(g.keys)
}

// NumElements returns the total element count across all entries.
func (g *Gradient) NumElements() int {
	n := 0
	for _, k := range g.keys {
		r, c := g.entries[k].m.Dims()
		n += r * c
	}
	return n
}

// Merge copies the entries of other into g, prefixing each key with "<layer>_".
func (g *Gradient) Merge(layer int, other *Gradient) {
	prefix := strconv.Itoa(layer) + "_"
	for _, k := range other.keys {
		g.put(prefix+k, other.entries[k])
	}
}

// Flattened returns every entry concatenated in key order as a 1×N matrix.
//
// When the entries are contiguous views of one arena the result aliases that
// arena; otherwise it is a fresh copy. An empty gradient yields nil.
func (g *Gradient) Flattened() *mat.Dense {
	n := g.NumElements()
	if n == 0 {
		return nil
	}
	if start, ok := g.contiguous(); ok {
		arena := g.entries[g.keys[0]].arena
		return mat.NewDense(1, n, arena[start:start+n:start+n])
	}
	out := make([]float64, 0, n)
	for _, k := range g.keys {
		m := g.entries[k].m
		r, _ := m.Dims()
		for i := 0; i < r; i++ {
			out = append(out, m.RawRowView(i)...)
		}
	}
	return mat.NewDense(1, n, out)
}

func (g *Gradient) contiguous() (int, bool) {
	first := g.entries[g.keys[0]]
	if len(first.arena) == 0 {
		return 0, false
	}
	next := first.offset
	for _, k := range g.keys {
		e := g.entries[k]
		if len(e.arena) == 0 || &e.arena[0] != &first.arena[0] || e.offset != next {
			return 0, false
		}
		r, c := e.m.Dims()
		next += r * c
	}
	return first.offset, true
}

// Clone returns a deep copy whose entries own their data.
func (g *Gradient) Clone() *Gradient {
	out := New()
	for _, k := range g.keys {
		out.Set(k, mat.DenseCopyOf(g.entries[k].m))
	}
	return out
}
