package game

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordList(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("word%03d", i)
	}
	return out
}

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestGenerateBoard_Distribution(t *testing.T) {
	pool := wordList(100)
	inPool := make(map[string]bool, len(pool))
	for _, w := range pool {
		inPool[w] = true
	}

	for i := range 20 {
		seeds, err := GenerateBoard(pool, seededRand(uint64(i)))
		require.NoError(t, err)
		require.Len(t, seeds, BoardSize)

		counts := map[Team]int{}
		seen := map[string]bool{}
		for _, s := range seeds {
			counts[s.Team]++
			assert.True(t, inPool[s.Text], "word %q not drawn from pool", s.Text)
			assert.False(t, seen[s.Text], "word %q drawn twice", s.Text)
			seen[s.Text] = true
		}

		want := map[Team]int{TeamRed: 7, TeamBlue: 6, TeamBlack: 1, TeamNeutral: 11}
		if diff := cmp.Diff(want, counts); diff != "" {
			t.Fatalf("category counts mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestGenerateBoard_ExactPool(t *testing.T) {
	pool := wordList(BoardSize)
	seeds, err := GenerateBoard(pool, seededRand(1))
	require.NoError(t, err)

	got := make([]string, len(seeds))
	for i, s := range seeds {
		got[i] = s.Text
	}
	assert.ElementsMatch(t, pool, got)
}

func TestGenerateBoard_InsufficientPool(t *testing.T) {
	_, err := GenerateBoard(wordList(20), seededRand(1))
	assert.ErrorIs(t, err, ErrInsufficientPool)
}

func TestGenerateBoard_DuplicatesDoNotCount(t *testing.T) {
	pool := append(wordList(24), "word000", "word001", "")
	_, err := GenerateBoard(pool, seededRand(1))
	assert.ErrorIs(t, err, ErrInsufficientPool)
}

func TestGenerateBoard_DoesNotMutatePool(t *testing.T) {
	pool := wordList(40)
	before := append([]string(nil), pool...)

	_, err := GenerateBoard(pool, seededRand(7))
	require.NoError(t, err)
	assert.Equal(t, before, pool)
}

func TestGenerateBoard_SeededIsDeterministic(t *testing.T) {
	pool := wordList(60)
	a, err := GenerateBoard(pool, seededRand(42))
	require.NoError(t, err)
	b, err := GenerateBoard(pool, seededRand(42))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateBoard_NilRand(t *testing.T) {
	seeds, err := GenerateBoard(wordList(30), nil)
	require.NoError(t, err)
	assert.Len(t, seeds, BoardSize)
}
