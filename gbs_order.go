package main

import (
	"fmt"
	"math/rand"
	"strings"
)

// GBSOrderMode selects how the next subsong is chosen
type GBSOrderMode int

const (
	GBSOrderLinear GBSOrderMode = iota
	GBSOrderShuffle
	GBSOrderRandom
)

func (m GBSOrderMode) String() string {
	switch m {
	case GBSOrderShuffle:
		return "shuffle"
	case GBSOrderRandom:
		return "random"
	default:
		return "linear"
	}
}

// ParseGBSOrderMode accepts linear, shuffle or random
func ParseGBSOrderMode(s string) (GBSOrderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear", "play":
		return GBSOrderLinear, nil
	case "shuffle":
		return GBSOrderShuffle, nil
	case "random":
		return GBSOrderRandom, nil
	}
	return GBSOrderLinear, fmt.Errorf("unknown play order %q (want linear, shuffle or random)", s)
}

// gbsSubsongOrder walks the 0-based subsongs first..last. Shuffle order is a
// seeded Fisher-Yates permutation; when it wraps, a new seed is drawn from the
// old sequence and the permutation is rebuilt.
type gbsSubsongOrder struct {
	mode  GBSOrderMode
	first int
	last  int
	loop  bool
	seed  int64

	rng  *rand.Rand
	perm []int
	pos  int
}

func newGBSSubsongOrder(mode GBSOrderMode, first, last int, loop bool, seed int64) *gbsSubsongOrder {
	if last < first {
		last = first
	}
	o := &gbsSubsongOrder{mode: mode, first: first, last: last, loop: loop}
	o.reseed(seed)
	return o
}

func (o *gbsSubsongOrder) reseed(seed int64) {
	o.seed = seed
	o.rng = rand.New(rand.NewSource(seed))
	if o.mode == GBSOrderShuffle {
		o.shuffle()
	}
}

func (o *gbsSubsongOrder) shuffle() {
	n := o.last - o.first + 1
	o.perm = make([]int, n)
	for i := range o.perm {
		o.perm[i] = o.first + i
	}
	for i := n - 1; i > 0; i-- {
		j := o.rng.Intn(i + 1)
		o.perm[i], o.perm[j] = o.perm[j], o.perm[i]
	}
	o.pos = 0
}

// Seed returns the seed behind the current shuffle permutation
func (o *gbsSubsongOrder) Seed() int64 {
	return o.seed
}

// Start returns the subsong to begin with. An explicit request wins, except
// in shuffle mode where the permutation decides.
func (o *gbsSubsongOrder) Start(requested int) int {
	switch o.mode {
	case GBSOrderShuffle:
		return o.perm[0]
	case GBSOrderRandom:
		return o.first + o.rng.Intn(o.last-o.first+1)
	}
	return min(max(requested, o.first), o.last)
}

// Next returns the subsong after current, or false when the session is over
func (o *gbsSubsongOrder) Next(current int) (int, bool) {
	switch o.mode {
	case GBSOrderShuffle:
		o.pos++
		if o.pos >= len(o.perm) {
			if !o.loop {
				o.pos = len(o.perm) - 1
				return current, false
			}
			o.reseed(o.rng.Int63())
		}
		return o.perm[o.pos], true
	case GBSOrderRandom:
		return o.first + o.rng.Intn(o.last-o.first+1), true
	}
	if current+1 > o.last {
		if !o.loop {
			return current, false
		}
		return o.first, true
	}
	return current + 1, true
}

// Prev returns the subsong before current, staying on the first one
func (o *gbsSubsongOrder) Prev(current int) int {
	switch o.mode {
	case GBSOrderShuffle:
		if o.pos > 0 {
			o.pos--
		}
		return o.perm[o.pos]
	case GBSOrderRandom:
		return o.first + o.rng.Intn(o.last-o.first+1)
	}
	return max(current-1, o.first)
}
