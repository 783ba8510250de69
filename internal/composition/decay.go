package composition

import (
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Chain describes the single-step decay behavior of one species:
// an exponential decay constant (per simulated time unit) and an
// optional daughter species receiving the decayed fraction.
type Chain struct {
	Lambda   float64 // decay constant per time unit; 0 = stable
	Daughter Nuclide // "" = decays out of the tracked set
	Branch   float64 // fraction of decays feeding the daughter
}

var (
	chainMu      sync.RWMutex
	chains       = map[Nuclide]Chain{}
	chainVersion atomic.Uint64
)

// RegisterChain installs or replaces the decay chain entry for a
// species. Species with no entry are treated as stable. Registration
// bumps the chain table version, invalidating previously cached decay
// results.
func RegisterChain(nuc Nuclide, c Chain) {
	chainMu.Lock()
	defer chainMu.Unlock()
	chains[nuc] = c
	chainVersion.Add(1)
}

// chainFor returns the chain entry for a species, zero value if stable.
func chainFor(nuc Nuclide) Chain {
	chainMu.RLock()
	defer chainMu.RUnlock()
	return chains[nuc]
}

type decayKey struct {
	compID  uint64
	dt      uint64
	chainVn uint64
}

// Decayed compositions are cached by (composition id, dt, chain table
// version): the global per-tick sweep hits many materials sharing one
// interned composition, and the version guard keeps late RegisterChain
// calls from serving stale transforms.
var decayCache, _ = lru.New[decayKey, *Composition](1024)

// Decay returns a new Composition representing dt simulated time units
// of decay applied to c. Pure and deterministic for a given (c, dt);
// dt of zero returns c unchanged. Each unstable species loses
// exp(-lambda*dt) of its atoms, with the decayed fraction feeding its
// registered daughter.
func (c *Composition) Decay(dt uint64) *Composition {
	if dt == 0 {
		return c
	}

	key := decayKey{compID: c.id, dt: dt, chainVn: chainVersion.Load()}
	if cached, ok := decayCache.Get(key); ok {
		return cached
	}

	out := make(CompMap, len(c.atom))
	for nuc, n := range c.atom {
		ch := chainFor(nuc)
		if ch.Lambda <= 0 {
			out[nuc] += n
			continue
		}
		remaining := n * math.Exp(-ch.Lambda*float64(dt))
		out[nuc] += remaining
		if ch.Daughter != "" && ch.Branch > 0 {
			out[ch.Daughter] += (n - remaining) * ch.Branch
		}
	}

	decayed, err := CreateFromAtom(out)
	if err != nil {
		// Total atoms can only decrease via untracked daughters; a
		// fully-decayed vector keeps the last surviving trace instead
		// of going empty, so this cannot fail for a valid c.
		return c
	}

	decayCache.Add(key, decayed)
	return decayed
}

// AtomicMass returns the atomic mass used to convert between mass and
// atom bases. The mass number is parsed from the trailing digits of
// the species identifier ("U235" → 235); species without one default
// to unit mass.
func AtomicMass(nuc Nuclide) float64 {
	s := string(nuc)
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 1
	}
	a, err := strconv.Atoi(s[i:])
	if err != nil || a <= 0 {
		return 1
	}
	return float64(a)
}
