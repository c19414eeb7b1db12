// Package timing converts message sizes and a persona profile into the staged
// delays that make an automated reply feel human. Compute is pure and fully
// deterministic for a given seed key, including the optional pause draws.
package timing

import (
	"math"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/persona"
)

const (
	// MinReadMS is the minimum perceptible "seen" delay, applied even for
	// trivial input.
	MinReadMS int64 = 700
	// MaxTotalMS caps the whole staged schedule.
	MaxTotalMS int64 = 45000

	lehmerMultiplier = 48271
	lehmerModulus    = 2147483647
)

// Timing is the computed stage breakdown for one reply. Ephemeral: consumed
// by the scheduler and optionally reported for telemetry, never persisted.
type Timing struct {
	ReadMS          int64 `json:"read_ms"`
	ComprehensionMS int64 `json:"comprehension_ms"`
	WriteMS         int64 `json:"write_ms"`
	TypeMS          int64 `json:"type_ms"`
	JitterMS        int64 `json:"jitter_ms"`
	PausesMS        int64 `json:"pauses_ms"`
	TotalMS         int64 `json:"total_ms"`
}

// rng is a minimal-state Park-Miller generator seeded by folding the seed key.
type rng struct {
	state int64
}

func newRNG(seedKey string) *rng {
	var seed uint32 = 1
	for _, c := range seedKey {
		seed = seed*31 + uint32(c)
	}
	state := int64(seed % lehmerModulus)
	// Zero is a fixed point of the recurrence; a key folding onto a multiple
	// of the modulus must not freeze the generator.
	if state == 0 {
		state = 1
	}
	return &rng{state: state}
}

// next returns the next value in [0,1).
func (r *rng) next() float64 {
	r.state = r.state * lehmerMultiplier % lehmerModulus
	return float64(r.state) / float64(lehmerModulus)
}

// sample draws one value from an inclusive range, rounded to the nearest
// integer before use.
func (r *rng) sample(rg persona.Range) float64 {
	return math.Round(rg.Min + r.next()*(rg.Max-rg.Min))
}

// Compute derives the stage durations for one reply. Token and char counts
// are treated as non-negative integers; clamping absurd values is the
// caller's responsibility.
func Compute(seedKey string, profile persona.Profile, inputChars, inputTokens, replyChars int) Timing {
	gen := newRNG(seedKey)

	readCPS := gen.sample(profile.ReadCPS)
	readMS := int64(math.Ceil(float64(inputChars) / readCPS * 1000))
	if readMS < MinReadMS {
		readMS = MinReadMS
	}

	compMS := int64(gen.sample(profile.CompBaseMS)) + int64(inputTokens)*int64(gen.sample(profile.CompPerTokenMS))
	writeMS := int64(replyChars) * int64(gen.sample(profile.WritePerCharMS))

	typeCPS := gen.sample(profile.TypeCPS)
	typeMS := int64(math.Ceil(float64(replyChars) / typeCPS * 1000))

	jitterMS := int64(gen.sample(profile.JitterMS))
	pausesMS := samplePauses(gen, profile.Pauses)

	total := readMS + compMS + writeMS + typeMS + jitterMS + pausesMS
	if total > MaxTotalMS {
		total = MaxTotalMS
	}

	return Timing{
		ReadMS:          readMS,
		ComprehensionMS: compMS,
		WriteMS:         writeMS,
		TypeMS:          typeMS,
		JitterMS:        jitterMS,
		PausesMS:        pausesMS,
		TotalMS:         total,
	}
}

func samplePauses(gen *rng, policy *persona.PausePolicy) int64 {
	if policy == nil {
		return 0
	}
	if gen.next() >= policy.Probability {
		return 0
	}
	count := 1 + int(gen.next()*float64(policy.MaxPauses))
	var sum int64
	for i := 0; i < count; i++ {
		sum += int64(gen.sample(policy.PauseMS))
	}
	return sum
}
