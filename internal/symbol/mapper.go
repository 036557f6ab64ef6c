package symbol

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mahekanna/gann-algomojo/internal/types"
)

// Scheme names a symbol vocabulary.
type Scheme string

const (
	SchemeTV       Scheme = "tv"
	SchemeAlgomojo Scheme = "algomojo"
)

// ErrNoMatchingRule means no rule covered the symbol for the requested
// direction. Surfaced instead of silently passing the symbol through, so a
// misconfigured watchlist fails at signal time rather than at the broker.
var ErrNoMatchingRule = errors.New("symbol: no matching mapping rule")

// Rule rewrites a symbol in one direction. Literal rules require an exact
// match; regex rules must match at the start of the symbol and may use
// capture groups ($1, $2, ...) in the replacement.
type Rule struct {
	From        Scheme                  `yaml:"from"`
	To          Scheme                  `yaml:"to"`
	ApplyTo     []types.InstrumentClass `yaml:"apply_to"`
	UseRegex    bool                    `yaml:"use_regex"`
	Pattern     string                  `yaml:"pattern"`
	Replacement string                  `yaml:"replacement"`
}

func (r Rule) appliesTo(class types.InstrumentClass) bool {
	if len(r.ApplyTo) == 0 {
		return true
	}
	for _, c := range r.ApplyTo {
		if c == class {
			return true
		}
	}
	return false
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Mapper translates symbols between schemes with an ordered rule list.
// Rules are compiled once at construction and never change afterwards.
type Mapper struct {
	rules []compiledRule
}

func NewMapper(rules []Rule) (*Mapper, error) {
	m := &Mapper{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		cr := compiledRule{Rule: r}
		if strings.TrimSpace(r.Pattern) == "" {
			return nil, fmt.Errorf("symbol: rule %d has empty pattern", i)
		}
		if r.UseRegex {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("symbol: rule %d pattern %q: %w", i, r.Pattern, err)
			}
			cr.re = re
		}
		m.rules = append(m.rules, cr)
	}
	return m, nil
}

// Translate applies the first rule matching the symbol, direction and
// instrument class. Same-scheme translation is the identity.
func (m *Mapper) Translate(symbol string, class types.InstrumentClass, from, to Scheme) (string, error) {
	if from == to {
		return symbol, nil
	}
	for _, r := range m.rules {
		if r.From != from || r.To != to || !r.appliesTo(class) {
			continue
		}
		if r.UseRegex {
			loc := r.re.FindStringIndex(symbol)
			if loc == nil || loc[0] != 0 {
				continue
			}
			return r.re.ReplaceAllString(symbol, r.Replacement), nil
		}
		if symbol == r.Pattern {
			return r.Replacement, nil
		}
	}
	return "", fmt.Errorf("%w: %s %s->%s (%s)", ErrNoMatchingRule, symbol, from, to, class)
}
