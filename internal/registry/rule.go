package registry

import (
	"fmt"
	"strings"
)

// RuleKind selects how containers are matched and named.
type RuleKind int

const (
	// ByPrefix matches container names starting with Prefix; the prefix is
	// stripped to form the logical name.
	ByPrefix RuleKind = iota
	// ByLabels matches containers carrying both LabelKey and ColorKey; their
	// values become the logical name and display color.
	ByLabels
)

func (k RuleKind) String() string {
	switch k {
	case ByPrefix:
		return "prefix"
	case ByLabels:
		return "labels"
	default:
		return "unknown"
	}
}

// Default label keys, as used by the plotting labels on compose services.
const (
	DefaultLabelKey = "plot.label"
	DefaultColorKey = "plot.color"
)

// Rule is a container selection rule.
type Rule struct {
	Kind     RuleKind
	Prefix   string
	LabelKey string
	ColorKey string
}

// PrefixRule builds a ByPrefix rule.
func PrefixRule(prefix string) Rule {
	return Rule{Kind: ByPrefix, Prefix: prefix}
}

// LabelRule builds a ByLabels rule, defaulting empty keys.
func LabelRule(labelKey, colorKey string) Rule {
	if labelKey == "" {
		labelKey = DefaultLabelKey
	}
	if colorKey == "" {
		colorKey = DefaultColorKey
	}
	return Rule{Kind: ByLabels, LabelKey: labelKey, ColorKey: colorKey}
}

// Validate reports whether the rule can select anything.
func (r Rule) Validate() error {
	switch r.Kind {
	case ByPrefix:
		if r.Prefix == "" {
			return fmt.Errorf("prefix rule needs a non-empty prefix")
		}
	case ByLabels:
		if r.LabelKey == "" || r.ColorKey == "" {
			return fmt.Errorf("label rule needs both a label key and a color key")
		}
		if r.LabelKey == r.ColorKey {
			return fmt.Errorf("label key and color key must differ, both are %q", r.LabelKey)
		}
	default:
		return fmt.Errorf("unknown rule kind %d", r.Kind)
	}
	return nil
}

func (r Rule) String() string {
	if r.Kind == ByPrefix {
		return fmt.Sprintf("name prefix %q", r.Prefix)
	}
	return fmt.Sprintf("labels %q and %q", r.LabelKey, r.ColorKey)
}

// matchPrefix returns the logical name for the first of names that carries
// the prefix. Docker names start with "/"; names with a further "/" are link
// aliases and never match.
func matchPrefix(names []string, prefix string) (string, bool) {
	for _, n := range names {
		n = strings.TrimPrefix(n, "/")
		if strings.Contains(n, "/") {
			continue
		}
		if strings.HasPrefix(n, prefix) {
			return strings.TrimPrefix(n, prefix), true
		}
	}
	return "", false
}
