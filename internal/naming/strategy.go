// Package naming maps introspected property definitions to their external (wire) names.
package naming

import (
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nieomylnieja/propdoc/internal/introspect"
	"github.com/nieomylnieja/propdoc/internal/profile"
)

// Strategy resolves the external name of a property.
type Strategy interface {
	introspect.Configurable
	Name(def introspect.Definition, dir introspect.Direction) string
}

// NewProfileStrategy creates a [Strategy] configured with the given profile.
func NewProfileStrategy(p profile.Profile) (*ProfileStrategy, error) {
	s := &ProfileStrategy{}
	if err := s.Configure(p); err != nil {
		return nil, err
	}
	return s, nil
}

// ProfileStrategy applies the [profile.NamingPolicy] of the active profile
// to every property which has no explicit name.
// The zero value behaves as if configured with [profile.Default].
type ProfileStrategy struct {
	policy atomic.Value // profile.NamingPolicy
}

// Configure installs the naming policy of the profile.
func (s *ProfileStrategy) Configure(p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "invalid marshaling profile")
	}
	s.policy.Store(p.Naming)
	return nil
}

// Name returns the explicit name of the definition if it has one,
// otherwise the name derived with the active naming policy.
// The name does not depend on the direction.
func (s *ProfileStrategy) Name(def introspect.Definition, _ introspect.Direction) string {
	if name, ok := def.ExplicitName(); ok {
		return name
	}
	policy, ok := s.policy.Load().(profile.NamingPolicy)
	if !ok {
		policy = profile.Default().Naming
	}
	return Apply(policy, def.GoName(), def.InternalName())
}

// Apply renders a property name according to the policy.
// goName is the Go member name without accessor prefix and internalName its decapitalized form.
func Apply(policy profile.NamingPolicy, goName, internalName string) string {
	switch policy {
	case profile.NamingGo:
		if goName == "" {
			return internalName
		}
		return goName
	case profile.NamingLowerCamel:
		return internalName
	case profile.NamingUpperCamel:
		// Casers are stateful and must not be shared between goroutines.
		return cases.Title(language.Und, cases.NoLower).String(internalName)
	case profile.NamingSnakeCase:
		return strings.Join(lowerWords(goName, internalName), "_")
	case profile.NamingKebabCase:
		return strings.Join(lowerWords(goName, internalName), "-")
	case profile.NamingLowerCase:
		return strings.ToLower(internalName)
	default:
		return internalName
	}
}

func lowerWords(goName, internalName string) []string {
	source := goName
	if source == "" {
		source = internalName
	}
	words := SplitWords(source)
	for i := range words {
		words[i] = strings.ToLower(words[i])
	}
	return words
}

// SplitWords splits a camel case identifier into words, keeping acronyms together:
//
//	UserID      -> User, ID
//	URLPath     -> URL, Path
//	address2Zip -> address2, Zip
func SplitWords(s string) []string {
	runes := []rune(s)
	var (
		words []string
		start int
	)
	for i := 1; i < len(runes); i++ {
		cur, prev := runes[i], runes[i-1]
		if !unicode.IsUpper(cur) {
			continue
		}
		nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextIsLower) {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	if start < len(runes) {
		words = append(words, string(runes[start:]))
	}
	return words
}
