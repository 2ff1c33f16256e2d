package authz

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DefaultRules returns the built-in ordered rule list. Order matters: an
// input mentioning both "incident" and "metrics" classifies as incident
// because the incident rule is evaluated first.
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: CategoryHealth,
			Keywords: []string{"health", "status", "uptime", "availability"},
			Required: []Capability{CapabilityRead},
		},
		{
			Category: CategoryIncident,
			Keywords: []string{"incident", "outage", "investigate", "root cause", "postmortem", "report"},
			Required: []Capability{CapabilityRead, CapabilityIncident},
		},
		{
			Category: CategoryAlert,
			Keywords: []string{"alert", "alarm", "paging", "page"},
			Required: []Capability{CapabilityRead, CapabilityAlert},
		},
		{
			Category: CategoryAction,
			Keywords: []string{"action", "remediate", "remediation", "rollback", "restart", "scale", "execute", "fix"},
			Required: []Capability{CapabilityRead, CapabilityAction},
		},
		{
			Category: CategoryMetrics,
			Keywords: []string{"metric", "performance", "latency", "throughput", "cpu", "memory", "error rate", "trend"},
			Required: []Capability{CapabilityRead, CapabilityMetrics},
		},
	}
}

// ruleFile is the YAML schema for an external rule list.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule list from YAML. The file order becomes the
// evaluation order. Every rule must have a category, at least one keyword,
// and at least one known capability.
func LoadRules(r io.Reader) ([]Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file contains no rules")
	}

	for i, rule := range f.Rules {
		if rule.Category == "" {
			return nil, fmt.Errorf("rule %d: missing category", i)
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no keywords", i, rule.Category)
		}
		if len(rule.Required) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no required capabilities", i, rule.Category)
		}
		for _, c := range rule.Required {
			if !c.IsValid() {
				return nil, fmt.Errorf("rule %d (%s): unknown capability %q", i, rule.Category, c)
			}
		}
	}
	return f.Rules, nil
}
