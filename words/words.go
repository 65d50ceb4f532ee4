// Package words provides the pool of candidate words boards are drawn from.
package words

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

//go:embed words.txt
var defaultWords string

// Pool is a deduplicated, ordered list of candidate words.
type Pool struct {
	words []string
}

// Default returns the pool compiled into the binary.
func Default() *Pool {
	pool, err := Parse(strings.NewReader(defaultWords))
	if err != nil {
		// embedded data is a string reader; Parse cannot fail on it
		panic(err)
	}
	return pool
}

// Load reads a pool from a file, one word per line. An empty path yields the
// default pool.
func Load(path string) (*Pool, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open words file: %w", err)
	}
	defer f.Close()

	pool, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read words file %s: %w", path, err)
	}
	return pool, nil
}

// MaxWordLength is the longest word, in runes, a pool accepts. It matches the
// narrowest column the stores keep field text in.
const MaxWordLength = 64

// Parse reads one word per line. Blank lines and lines starting with '#' are
// skipped; words are lowercased and trimmed, and duplicates keep their first
// occurrence. Words longer than MaxWordLength are dropped.
func Parse(r io.Reader) (*Pool, error) {
	b := newBuilder()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.pool(), nil
}

// FromSlice builds a pool from an in-memory list, applying the same
// normalisation as Parse.
func FromSlice(list []string) *Pool {
	b := newBuilder()
	for _, w := range list {
		b.add(w)
	}
	return b.pool()
}

type builder struct {
	seen    map[string]struct{}
	list    []string
	skipped int
}

func newBuilder() *builder {
	return &builder{seen: make(map[string]struct{})}
}

func (b *builder) add(line string) {
	word := strings.ToLower(strings.TrimSpace(line))
	if word == "" || strings.HasPrefix(word, "#") {
		return
	}
	if utf8.RuneCountInString(word) > MaxWordLength {
		b.skipped++
		return
	}
	if _, dup := b.seen[word]; dup {
		return
	}
	b.seen[word] = struct{}{}
	b.list = append(b.list, word)
}

func (b *builder) pool() *Pool {
	if b.skipped > 0 {
		log.Warn().Int("skipped", b.skipped).Int("max_runes", MaxWordLength).Msg("dropped over-long words from pool")
	}
	return &Pool{words: b.list}
}

// Words returns a copy of the pool's words.
func (p *Pool) Words() []string {
	out := make([]string, len(p.words))
	copy(out, p.words)
	return out
}

func (p *Pool) Len() int {
	return len(p.words)
}
