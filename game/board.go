package game

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
)

const BoardSize = 25

// boardLayout is the category split, applied in order over a shuffled slot
// sequence.
var boardLayout = []struct {
	team  Team
	count int
}{
	{TeamRed, 7},
	{TeamBlue, 6},
	{TeamBlack, 1},
	{TeamNeutral, 11},
}

// GenerateBoard draws BoardSize distinct words from pool and assigns each a
// category. Categories are placed over an independent permutation of slot
// indices, so they are unrelated to which word was drawn. A nil rng uses a
// freshly seeded source.
func GenerateBoard(pool []string, rng *rand.Rand) ([]Seed, error) {
	candidates := uniqueWords(pool)
	if len(candidates) < BoardSize {
		return nil, fmt.Errorf("%w: have %d distinct words, need %d", ErrInsufficientPool, len(candidates), BoardSize)
	}
	if rng == nil {
		rng = NewRand()
	}

	// partial Fisher-Yates: the first BoardSize entries become the draw
	for i := 0; i < BoardSize; i++ {
		j := i + rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	seeds := make([]Seed, BoardSize)
	for i := range seeds {
		seeds[i].Text = candidates[i]
	}

	slots := rng.Perm(BoardSize)
	next := 0
	for _, block := range boardLayout {
		for k := 0; k < block.count; k++ {
			seeds[slots[next]].Team = block.team
			next++
		}
	}

	return seeds, nil
}

// NewRand returns a generator seeded from the OS entropy source.
func NewRand() *rand.Rand {
	var seed [32]byte
	_, _ = crand.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}

func uniqueWords(pool []string) []string {
	seen := make(map[string]struct{}, len(pool))
	out := make([]string, 0, len(pool))
	for _, w := range pool {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
