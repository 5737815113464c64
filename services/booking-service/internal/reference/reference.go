// Package reference generates human readable booking references.
package reference

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
)

const (
	Prefix = "BK-"
	Min    = 100000
	Max    = 999999

	// MaxAttempts bounds retries after a reference collision.
	MaxAttempts = 5
)

var pattern = regexp.MustCompile(`^BK-\d{6}$`)

// Generator draws references uniformly from [Min, Max].
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator() *Generator {
	return &Generator{}
}

// NewSeeded returns a deterministic generator.
func NewSeeded(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

func (g *Generator) Next() string {
	var n int
	if g.rnd == nil {
		n = Min + rand.IntN(Max-Min+1)
	} else {
		g.mu.Lock()
		n = Min + g.rnd.IntN(Max-Min+1)
		g.mu.Unlock()
	}
	return Format(n)
}

func Format(n int) string {
	return fmt.Sprintf("%s%06d", Prefix, n)
}

func Valid(ref string) bool {
	return pattern.MatchString(ref)
}
