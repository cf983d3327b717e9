package genetic

import (
	"math/rand"

	"b3-genetic-lab/internal/domain"
)

// RandomGenome draws each of totalGenes positions uniformly from symbols.
func RandomGenome(rng *rand.Rand, symbols []string, totalGenes int) domain.Genome {
	g := make(domain.Genome, totalGenes)
	for i := range g {
		g[i] = symbols[rng.Intn(len(symbols))]
	}
	return g
}

// RandomCut picks a crossover point uniformly in [1, totalGenes-1].
// Genomes with a single gene have no interior cut; 1 is returned so the child is parent 1.
func RandomCut(rng *rand.Rand, totalGenes int) int {
	if totalGenes < 2 {
		return 1
	}
	return 1 + rng.Intn(totalGenes-1)
}

// Crossover returns p1[:cut] followed by p2[cut:]. Parent order matters.
func Crossover(p1, p2 domain.Genome, cut int) domain.Genome {
	child := make(domain.Genome, len(p1))
	copy(child[:cut], p1[:cut])
	copy(child[cut:], p2[cut:])
	return child
}

// Mutate returns a copy of g where each gene is independently replaced,
// with probability rate, by a uniformly drawn symbol. g is not modified.
func Mutate(rng *rand.Rand, g domain.Genome, rate float64, symbols []string) domain.Genome {
	out := g.Clone()
	if rate <= 0 {
		return out
	}
	for i := range out {
		if rng.Float64() < rate {
			out[i] = symbols[rng.Intn(len(symbols))]
		}
	}
	return out
}

// sampleDistinctPair draws two distinct indices in [0, n) without replacement.
// Requires n >= 2.
func sampleDistinctPair(rng *rand.Rand, n int) (int, int) {
	a := rng.Intn(n)
	b := rng.Intn(n - 1)
	if b >= a {
		b++
	}
	return a, b
}
