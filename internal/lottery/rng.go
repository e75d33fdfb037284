// Package lottery holds the allocation engine and the entrant transitions
// that operate on a single in-memory event record.  Nothing in this package
// performs I/O; callers load the record, call into it and persist the result.
package lottery

import (
    crand "crypto/rand"
    "encoding/binary"
    "math/rand/v2"
    "sync"
)

// RNG is the randomness source used for draws and replacements.  Intn must
// return a uniformly distributed value in [0, n) and may panic when n <= 0.
type RNG interface {
    Intn(n int) int
}

type pcgRNG struct {
    r *rand.Rand
}

func (p *pcgRNG) Intn(n int) int { return p.r.IntN(n) }

// NewRNG returns a PCG generator.  A zero seed draws the seed from
// crypto/rand, any other value gives a reproducible sequence.
//
// The returned generator is not safe for concurrent use.
func NewRNG(seed uint64) RNG {
    if seed == 0 {
        var b [8]byte
        if _, err := crand.Read(b[:]); err == nil {
            seed = binary.LittleEndian.Uint64(b[:])
        }
        seed |= 1
    }
    return &pcgRNG{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

type lockedRNG struct {
    mu sync.Mutex
    r  RNG
}

func (l *lockedRNG) Intn(n int) int {
    l.mu.Lock()
    defer l.mu.Unlock()
    return l.r.Intn(n)
}

// Locked wraps r so it can be shared by concurrent requests.
func Locked(r RNG) RNG { return &lockedRNG{r: r} }

// shuffle is an in-place Fisher-Yates permutation driven by rng.
func shuffle(ids []string, rng RNG) {
    for i := len(ids) - 1; i > 0; i-- {
        j := rng.Intn(i + 1)
        ids[i], ids[j] = ids[j], ids[i]
    }
}
