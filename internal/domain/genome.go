package domain

// Genome is an allocation plan: one symbol per (cycle, pot) slot.
// Gene for pot p in cycle c lives at index c*numPots + p.
type Genome []string

// Clone returns an independent copy of g.
func (g Genome) Clone() Genome {
	out := make(Genome, len(g))
	copy(out, g)
	return out
}

// Cycle returns the genes assigned to cycle c.
func (g Genome) Cycle(c, numPots int) []string {
	return g[c*numPots : (c+1)*numPots]
}

// Equal reports whether both genomes hold the same genes in the same order.
func (g Genome) Equal(other Genome) bool {
	if len(g) != len(other) {
		return false
	}
	for i := range g {
		if g[i] != other[i] {
			return false
		}
	}
	return true
}
