package timing

import (
	"testing"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/persona"
)

func carlosProfile(t *testing.T) persona.Profile {
	t.Helper()
	for _, profile := range persona.Defaults() {
		if profile.Name == "carlos" {
			return profile
		}
	}
	t.Fatal("carlos profile missing from defaults")
	return persona.Profile{}
}

func TestComputeIsDeterministic(t *testing.T) {
	profile := carlosProfile(t)

	first := Compute("t1:conv1:m1", profile, 120, 40, 400)
	second := Compute("t1:conv1:m1", profile, 120, 40, 400)

	if first != second {
		t.Fatalf("expected identical timings, got %+v and %+v", first, second)
	}
}

func TestComputeDiffersAcrossSeeds(t *testing.T) {
	profile := carlosProfile(t)

	a := Compute("t1:conv1:m1", profile, 120, 40, 400)
	b := Compute("t1:conv1:m2", profile, 120, 40, 400)

	if a == b {
		t.Fatalf("expected different timings for different seed keys, both %+v", a)
	}
}

func TestComputeReadFloor(t *testing.T) {
	profile := carlosProfile(t)

	timing := Compute("t1:conv1:m1", profile, 1, 1, 1)
	if timing.ReadMS != 700 {
		t.Fatalf("expected read floor 700, got %d", timing.ReadMS)
	}
}

// Durations scale at millisecond granularity; collapsing each range pins the
// samples so the exact values can be asserted. A whole-second ceil would make
// the 700ms read floor unreachable for non-empty input.
func TestComputeDurationsHaveMillisecondGranularity(t *testing.T) {
	profile := persona.Profile{
		Name:           "fixed",
		ReadCPS:        persona.Range{Min: 40, Max: 40},
		TypeCPS:        persona.Range{Min: 7, Max: 7},
		CompBaseMS:     persona.Range{Min: 0, Max: 0},
		CompPerTokenMS: persona.Range{Min: 0, Max: 0},
		WritePerCharMS: persona.Range{Min: 0, Max: 0},
		JitterMS:       persona.Range{Min: 0, Max: 0},
	}

	timing := Compute("t1:conv1:m1", profile, 125, 0, 100)
	if timing.ReadMS != 3125 {
		t.Fatalf("read_ms got=%d want=3125 (ceil(125/40*1000))", timing.ReadMS)
	}
	if timing.TypeMS != 14286 {
		t.Fatalf("type_ms got=%d want=14286 (ceil(100/7*1000))", timing.TypeMS)
	}

	// Trivial input lands under the floor and gets raised to it.
	if got := Compute("t1:conv1:m1", profile, 1, 0, 0).ReadMS; got != 700 {
		t.Fatalf("read_ms for trivial input got=%d want=700", got)
	}
}

func TestComputeTotalCap(t *testing.T) {
	profile := carlosProfile(t)

	timing := Compute("t1:conv1:m1", profile, 100000, 30000, 100000)
	if timing.TotalMS != MaxTotalMS {
		t.Fatalf("expected capped total %d, got %d", MaxTotalMS, timing.TotalMS)
	}
}

func TestComputeTotalIsSumWhenUncapped(t *testing.T) {
	profile := carlosProfile(t)

	// Small sizes keep the component sum well under the cap for any draw.
	timing := Compute("t1:conv1:m1", profile, 40, 10, 30)
	sum := timing.ReadMS + timing.ComprehensionMS + timing.WriteMS + timing.TypeMS + timing.JitterMS + timing.PausesMS
	if timing.TotalMS != sum {
		t.Fatalf("total %d does not match component sum %d", timing.TotalMS, sum)
	}
}

func TestComputeMonotonicInInputSizes(t *testing.T) {
	profile := carlosProfile(t)
	seed := "t9:conv3:m7"

	var prev int64
	for _, chars := range []int{1, 10, 100, 500, 1000} {
		got := Compute(seed, profile, chars, 5, 50).TotalMS
		if got < prev {
			t.Fatalf("total decreased with input chars: %d after %d", got, prev)
		}
		prev = got
	}

	prev = 0
	for _, tokens := range []int{0, 5, 20, 80, 200} {
		got := Compute(seed, profile, 100, tokens, 50).TotalMS
		if got < prev {
			t.Fatalf("total decreased with input tokens: %d after %d", got, prev)
		}
		prev = got
	}

	prev = 0
	for _, reply := range []int{0, 10, 80, 300, 900} {
		got := Compute(seed, profile, 100, 5, reply).TotalMS
		if got < prev {
			t.Fatalf("total decreased with reply chars: %d after %d", got, prev)
		}
		prev = got
	}
}

func TestComputeBoundsHoldAcrossSeeds(t *testing.T) {
	profile := carlosProfile(t)

	for _, seed := range []string{"a", "t1:c1:m1", "t2:contact-9:m3", "x:y:z", ""} {
		timing := Compute(seed, profile, 250, 60, 500)
		if timing.ReadMS < MinReadMS {
			t.Fatalf("seed %q: read %d below floor", seed, timing.ReadMS)
		}
		if timing.TotalMS > MaxTotalMS {
			t.Fatalf("seed %q: total %d above cap", seed, timing.TotalMS)
		}
	}
}

func TestComputeWithoutPausePolicy(t *testing.T) {
	profile := carlosProfile(t)
	profile.Pauses = nil

	timing := Compute("t1:conv1:m1", profile, 120, 40, 400)
	if timing.PausesMS != 0 {
		t.Fatalf("expected zero pauses without a policy, got %d", timing.PausesMS)
	}
}
