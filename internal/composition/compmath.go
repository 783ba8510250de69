package composition

// Arithmetic on raw composition maps. These operate on quantities, not
// fractions: callers scale fraction views by material quantity before
// combining, then re-normalize via CreateFromMass/CreateFromAtom.

// Normalize scales v in place so its entries sum to the given total.
func Normalize(v CompMap, total float64) {
	sum := 0.0
	for _, qty := range v {
		sum += qty
	}
	if sum == 0 {
		return
	}
	for nuc := range v {
		v[nuc] *= total / sum
	}
}

// Add returns the entrywise sum of two composition maps.
func Add(a, b CompMap) CompMap {
	out := make(CompMap, len(a)+len(b))
	for nuc, qty := range a {
		out[nuc] = qty
	}
	for nuc, qty := range b {
		out[nuc] += qty
	}
	return out
}

// Sub returns the entrywise difference a - b. Entries may go negative;
// callers apply a threshold before re-normalizing.
func Sub(a, b CompMap) CompMap {
	out := make(CompMap, len(a))
	for nuc, qty := range a {
		out[nuc] = qty
	}
	for nuc, qty := range b {
		out[nuc] -= qty
	}
	return out
}

// ApplyThreshold zeroes every entry whose magnitude is below threshold.
// Used after subtraction so numerical residue does not accumulate as
// phantom trace species.
func ApplyThreshold(v CompMap, threshold float64) {
	for nuc, qty := range v {
		if qty < threshold && qty > -threshold {
			delete(v, nuc)
		}
	}
}
