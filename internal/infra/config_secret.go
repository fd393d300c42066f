package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SecretConfig matches the structure of secrets/sideshift.yaml
type SecretConfig struct {
	SideShift struct {
		Secret      string `yaml:"secret"`
		AffiliateID string `yaml:"affiliate_id"`
	} `yaml:"sideshift"`
}

// LoadSecretConfig loads API credentials from a separate yaml file.
// It returns error if file is missing (Fail Fast).
func LoadSecretConfig(path string) (*SecretConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret config: %w", err)
	}

	var cfg SecretConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse secret config: %w", err)
	}
	if cfg.SideShift.Secret == "" || cfg.SideShift.AffiliateID == "" {
		return nil, fmt.Errorf("secret config %s: sideshift secret and affiliate_id are required", path)
	}

	return &cfg, nil
}

// Apply copies the credentials into cfg unless the environment already set them.
func (s *SecretConfig) Apply(cfg *Config) {
	if os.Getenv("SIDESHIFT_SECRET") == "" {
		cfg.SideShift.Secret = s.SideShift.Secret
	}
	if os.Getenv("SIDESHIFT_AFFILIATE_ID") == "" {
		cfg.SideShift.AffiliateID = s.SideShift.AffiliateID
	}
}
