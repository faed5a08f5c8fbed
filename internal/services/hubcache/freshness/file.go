package freshness

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/subdogs/hub/internal/platform/errors"
	"github.com/subdogs/hub/internal/services/hubcache/keys"
	"gopkg.in/yaml.v3"
)

type policyOverride struct {
	TTL      string `yaml:"ttl"`
	LeadTime string `yaml:"lead_time"`
}

// LoadFile applies overrides from a YAML file on top of base. An empty path
// returns base unchanged.
//
//	news:
//	  ttl: 2h
//	  lead_time: 15m
func LoadFile(path string, base Policies) (Policies, error) {
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	policies, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return policies, nil
}

// Parse applies YAML overrides on top of base. Fields left out keep the base
// value.
func Parse(data []byte, base Policies) (Policies, error) {
	var overrides map[string]policyOverride
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidPolicy, "parse policy yaml", err)
	}

	out := base.Clone()
	for name, override := range overrides {
		kind, err := keys.ParseKind(name)
		if err != nil {
			return nil, err
		}
		policy := out[kind]
		if override.TTL != "" {
			d, err := time.ParseDuration(override.TTL)
			if err != nil {
				return nil, apperrors.WrapWithMetadata(apperrors.CodeInvalidPolicy, "parse ttl", map[string]string{"kind": name}, err)
			}
			policy.TTL = d
		}
		if override.LeadTime != "" {
			d, err := time.ParseDuration(override.LeadTime)
			if err != nil {
				return nil, apperrors.WrapWithMetadata(apperrors.CodeInvalidPolicy, "parse lead time", map[string]string{"kind": name}, err)
			}
			policy.LeadTime = d
		}
		out[kind] = policy
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
