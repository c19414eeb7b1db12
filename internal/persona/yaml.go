package persona

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type profileFile struct {
	Version  int       `yaml:"version"`
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile reads persona profiles from a YAML file. Every profile must
// validate; a single bad entry fails the whole load so a typo cannot silently
// drop a persona.
func LoadFile(path string) ([]Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personas file: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse personas file: %w", err)
	}

	for i := range file.Profiles {
		file.Profiles[i].Name = normalizeName(file.Profiles[i].Name)
		if err := file.Profiles[i].Validate(); err != nil {
			return nil, fmt.Errorf("personas file entry %d: %w", i, err)
		}
	}
	return file.Profiles, nil
}

// SeedStore writes profiles into a store, failing on the first bad profile.
func SeedStore(ctx context.Context, store Store, profiles []Profile) error {
	for _, profile := range profiles {
		if err := store.Put(ctx, profile); err != nil {
			return fmt.Errorf("seed persona %q: %w", profile.Name, err)
		}
	}
	return nil
}
