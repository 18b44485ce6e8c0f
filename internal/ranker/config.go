package ranker

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/scriptrag/pkg/types"
)

// Config holds the ranking weights. It can be loaded from a YAML profile.
type Config struct {
	TypeWeights       map[types.ContentType]float64 `yaml:"type_weights"`
	DefaultTypeWeight float64                       `yaml:"default_type_weight"`
	ExactMatchBoost   float64                       `yaml:"exact_match_boost"`
	DensityWeight     float64                       `yaml:"density_weight"`   // boost when every query term occurs
	MaxDensityBoost   float64                       `yaml:"max_density_boost"` // ceiling, reached only when density_weight exceeds it
	MetadataBoost     float64                       `yaml:"metadata_boost"`
	MetadataFields    []string                      `yaml:"metadata_fields"`
	RecencyWeight     float64                       `yaml:"recency_weight"`
}

// DefaultConfig returns the default ranking weights
func DefaultConfig() Config {
	return Config{
		TypeWeights: map[types.ContentType]float64{
			types.TypeScene:     1.0,
			types.TypeDialogue:  0.9,
			types.TypeCharacter: 0.85,
			types.TypeAction:    0.8,
			types.TypeLocation:  0.75,
			types.TypeObject:    0.7,
		},
		DefaultTypeWeight: 0.5,
		ExactMatchBoost:   1.2,
		DensityWeight:     0.1,
		MaxDensityBoost:   0.5,
		MetadataBoost:     0.1,
		MetadataFields: []string{
			types.MetaCharacter, types.MetaHeading, types.MetaName, types.MetaLocation,
		},
		RecencyWeight: 0.1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	weights := make(map[types.ContentType]float64, len(d.TypeWeights))
	for t, w := range d.TypeWeights {
		weights[t] = w
	}
	for t, w := range c.TypeWeights {
		weights[t] = w
	}
	c.TypeWeights = weights

	if c.DefaultTypeWeight == 0 {
		c.DefaultTypeWeight = d.DefaultTypeWeight
	}
	if c.ExactMatchBoost == 0 {
		c.ExactMatchBoost = d.ExactMatchBoost
	}
	if c.DensityWeight == 0 {
		c.DensityWeight = d.DensityWeight
	}
	if c.MaxDensityBoost == 0 {
		c.MaxDensityBoost = d.MaxDensityBoost
	}
	if c.MetadataBoost == 0 {
		c.MetadataBoost = d.MetadataBoost
	}
	if c.MetadataFields == nil {
		c.MetadataFields = d.MetadataFields
	}
	if c.RecencyWeight == 0 {
		c.RecencyWeight = d.RecencyWeight
	}
	return c
}

// LoadConfig reads a YAML ranking profile. Fields left out of the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read ranking profile: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a YAML ranking profile
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse ranking profile: %w", err)
	}
	for t := range cfg.TypeWeights {
		if !t.Valid() {
			return Config{}, fmt.Errorf("%w: ranking profile names unknown type %q", types.ErrInvalidInput, t)
		}
	}
	return cfg.withDefaults(), nil
}
