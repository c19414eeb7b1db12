package persona

import (
	"fmt"
	"strings"
)

// Range is an inclusive numeric sampling bound. Units depend on the field it
// configures (chars/sec or milliseconds).
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (r Range) validate(field string) error {
	if r.Min > r.Max {
		return fmt.Errorf("%s: min %v greater than max %v", field, r.Min, r.Max)
	}
	return nil
}

// PausePolicy makes a persona occasionally stall mid-reply.
type PausePolicy struct {
	Probability float64 `json:"probability" yaml:"probability"`
	PauseMS     Range   `json:"pause_ms" yaml:"pause_ms"`
	MaxPauses   int     `json:"max_pauses" yaml:"max_pauses"`
}

// Profile is a named bundle of timing ranges modeling one typing style.
// Profiles are immutable once loaded; stores hand out copies.
type Profile struct {
	Name           string       `json:"name" yaml:"name"`
	ReadCPS        Range        `json:"read_cps" yaml:"read_cps"`
	TypeCPS        Range        `json:"type_cps" yaml:"type_cps"`
	CompBaseMS     Range        `json:"comp_base_ms" yaml:"comp_base_ms"`
	CompPerTokenMS Range        `json:"comp_ms_per_token" yaml:"comp_ms_per_token"`
	WritePerCharMS Range        `json:"write_ms_per_char" yaml:"write_ms_per_char"`
	JitterMS       Range        `json:"jitter_ms" yaml:"jitter_ms"`
	Pauses         *PausePolicy `json:"pauses,omitempty" yaml:"pauses,omitempty"`
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile name must not be empty")
	}
	if p.ReadCPS.Min <= 0 {
		return fmt.Errorf("read_cps: min must be positive")
	}
	if p.TypeCPS.Min <= 0 {
		return fmt.Errorf("type_cps: min must be positive")
	}
	checks := []struct {
		field string
		r     Range
	}{
		{"read_cps", p.ReadCPS},
		{"type_cps", p.TypeCPS},
		{"comp_base_ms", p.CompBaseMS},
		{"comp_ms_per_token", p.CompPerTokenMS},
		{"write_ms_per_char", p.WritePerCharMS},
		{"jitter_ms", p.JitterMS},
	}
	for _, c := range checks {
		if err := c.r.validate(c.field); err != nil {
			return err
		}
	}
	if p.Pauses != nil {
		if p.Pauses.Probability < 0 || p.Pauses.Probability > 1 {
			return fmt.Errorf("pauses: probability must be within [0,1]")
		}
		if p.Pauses.MaxPauses < 1 {
			return fmt.Errorf("pauses: max_pauses must be at least 1")
		}
		if err := p.Pauses.PauseMS.validate("pauses.pause_ms"); err != nil {
			return err
		}
	}
	return nil
}

func cloneProfile(p Profile) Profile {
	if p.Pauses != nil {
		pauses := *p.Pauses
		p.Pauses = &pauses
	}
	return p
}

// Defaults returns the built-in profiles seeded into fresh stores.
func Defaults() []Profile {
	return []Profile{
		{
			Name:           "carlos",
			ReadCPS:        Range{Min: 30, Max: 55},
			TypeCPS:        Range{Min: 5, Max: 9},
			CompBaseMS:     Range{Min: 600, Max: 1600},
			CompPerTokenMS: Range{Min: 15, Max: 40},
			WritePerCharMS: Range{Min: 6, Max: 18},
			JitterMS:       Range{Min: 200, Max: 900},
			Pauses: &PausePolicy{
				Probability: 0.25,
				PauseMS:     Range{Min: 800, Max: 2500},
				MaxPauses:   2,
			},
		},
		{
			Name:           "dana",
			ReadCPS:        Range{Min: 45, Max: 70},
			TypeCPS:        Range{Min: 8, Max: 14},
			CompBaseMS:     Range{Min: 400, Max: 1000},
			CompPerTokenMS: Range{Min: 10, Max: 25},
			WritePerCharMS: Range{Min: 4, Max: 12},
			JitterMS:       Range{Min: 100, Max: 500},
		},
	}
}
