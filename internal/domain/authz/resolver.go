package authz

import (
	"strings"
)

// Category identifies the operation category a request classified into.
type Category string

const (
	// CategoryHealth covers health and status checks.
	CategoryHealth Category = "health"
	// CategoryIncident covers incident investigation and reporting.
	CategoryIncident Category = "incident"
	// CategoryAlert covers alert monitoring.
	CategoryAlert Category = "alert"
	// CategoryAction covers remediation action submission.
	CategoryAction Category = "action"
	// CategoryMetrics covers metric and performance analysis.
	CategoryMetrics Category = "metrics"
	// CategoryGeneral is the fallback when no rule matches.
	CategoryGeneral Category = "general"
)

// Rule maps trigger keywords to an operation category and the capabilities
// required to perform operations in that category.
type Rule struct {
	// Category is the operation category this rule classifies into.
	Category Category `yaml:"category"`
	// Keywords trigger this rule when any appears in the lowercased input.
	Keywords []string `yaml:"keywords"`
	// Required is the capability set operations in this category need.
	Required []Capability `yaml:"required"`
}

// Classification is the derived result of classifying a request.
// It is a pure function of the input, never stored.
type Classification struct {
	// Category the request classified into.
	Category Category
	// Required is the capability set needed to perform the operation.
	// Capabilities are AND-combined: a principal needs every one of them.
	Required []Capability
}

// Resolver classifies operation requests and authorizes principals against
// the resulting capability requirements. It is stateless after construction
// and safe for concurrent use. It never touches the cache or policy engine.
type Resolver struct {
	rules []Rule
}

// NewResolver creates a Resolver with the given ordered rules. Rules are
// evaluated top to bottom and the first keyword match wins; there is no
// best-match scoring across categories. Nil or empty rules fall back to the
// built-in rule set.
func NewResolver(rules []Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Resolver{rules: copied}
}

// Classify maps free text or a structured operation name to its category and
// required capabilities. Matching is case-insensitive substring containment;
// the first rule with any matching keyword short-circuits the rest. Inputs
// matching no rule require only CapabilityRead.
func (r *Resolver) Classify(input string) Classification {
	lowered := strings.ToLower(input)

	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lowered, kw) {
				return Classification{
					Category: rule.Category,
					Required: append([]Capability(nil), rule.Required...),
				}
			}
		}
	}

	return Classification{
		Category: CategoryGeneral,
		Required: []Capability{CapabilityRead},
	}
}

// Authorize succeeds iff the principal holds every required capability.
// Partial matches fail. On failure it returns an *AuthorizationError listing
// the missing capabilities; ordinary denial is a structured value, never a
// panic or log-and-continue.
func (r *Resolver) Authorize(p Principal, cls Classification) error {
	missing := p.Missing(cls.Required)
	if len(missing) == 0 {
		return nil
	}
	return &AuthorizationError{
		PrincipalID: p.ID,
		Category:    cls.Category,
		Required:    append([]Capability(nil), cls.Required...),
		Missing:     missing,
	}
}

// Rules returns a copy of the resolver's ordered rule list.
func (r *Resolver) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}
