package marketprice

import (
	"io"
	"math/rand/v2"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

func TestQuote_WalkInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		rng := rand.New(rand.NewPCG(seed, seed>>1|1))

		q := newQuote("X", rng)
		prevVolume := q.volume
		for i := 0; i < steps; i++ {
			q.advance(rng)
			if !q.last.GreaterThanOrEqual(tick) {
				rt.Fatalf("last %s below one tick", q.last)
			}
			if !q.bid.LessThan(q.ask) {
				rt.Fatalf("bid %s not below ask %s", q.bid, q.ask)
			}
			if q.high.LessThan(q.last) || q.low.GreaterThan(q.last) {
				rt.Fatalf("last %s outside [%s, %s]", q.last, q.low, q.high)
			}
			if q.volume <= prevVolume {
				rt.Fatalf("volume did not grow")
			}
			prevVolume = q.volume
			if !q.last.Equal(q.last.Round(2)) {
				rt.Fatalf("last %s has sub-tick precision", q.last)
			}
		}
	})
}

func TestQuote_SeedIsDeterministic(t *testing.T) {
	a := newQuote("X", rand.New(rand.NewPCG(7, 7)))
	b := newQuote("X", rand.New(rand.NewPCG(7, 7)))
	if !a.last.Equal(b.last) || !a.bid.Equal(b.bid) || a.bidSize != b.bidSize {
		t.Fatalf("same seed produced different quotes: %s vs %s", a.last, b.last)
	}
}
