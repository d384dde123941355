// Package profile defines the marshaling profile, the serialization configuration
// shared by the property introspector and the naming strategy.
package profile

import (
	"maps"
	"reflect"
	"strings"

	"github.com/nobl9/govy/pkg/govy"
	"github.com/nobl9/govy/pkg/rules"
	"github.com/pkg/errors"
)

// NamingPolicy decides how implicit property names are rendered on the wire.
type NamingPolicy string

const (
	// NamingGo uses the Go member name stripped of the accessor prefix.
	// This is how encoding/json names untagged fields.
	NamingGo         NamingPolicy = "go"
	NamingLowerCamel NamingPolicy = "lowerCamel"
	NamingUpperCamel NamingPolicy = "UpperCamel"
	NamingSnakeCase  NamingPolicy = "snake_case"
	NamingKebabCase  NamingPolicy = "kebab-case"
	NamingLowerCase  NamingPolicy = "lowercase"
)

var namingPolicies = []NamingPolicy{
	NamingGo,
	NamingLowerCamel,
	NamingUpperCamel,
	NamingSnakeCase,
	NamingKebabCase,
	NamingLowerCase,
}

// UnmarshalText accepts both the canonical policy names and a few common aliases.
func (n *NamingPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "go", "":
		*n = NamingGo
	case "lowercamel", "lower_camel", "camel":
		*n = NamingLowerCamel
	case "uppercamel", "upper_camel", "pascal":
		*n = NamingUpperCamel
	case "snake_case", "snake":
		*n = NamingSnakeCase
	case "kebab-case", "kebab":
		*n = NamingKebabCase
	case "lowercase", "lower":
		*n = NamingLowerCase
	default:
		return errors.Errorf("unknown naming policy %q", string(text))
	}
	return nil
}

// Access restricts the directions in which a property is visible.
type Access string

const (
	AccessDefault   Access = ""
	AccessReadOnly  Access = "readOnly"
	AccessWriteOnly Access = "writeOnly"
	AccessReadWrite Access = "readWrite"
)

// MemberConfig overrides the tag-derived configuration of a single property.
type MemberConfig struct {
	// Name is the explicit external name of the property.
	Name   string `mapstructure:"name" json:"name,omitempty"`
	Ignore bool   `mapstructure:"ignore" json:"ignore,omitempty"`
	// Unwrap inlines the properties of the member's value type into its parent.
	Unwrap bool   `mapstructure:"unwrap" json:"unwrap,omitempty"`
	Access Access `mapstructure:"access" json:"access,omitempty"`
}

// TypeConfig maps internal property names to their overrides.
type TypeConfig map[string]MemberConfig

// Profile is the active marshaling profile.
// It is configured once and treated as read-only afterwards.
type Profile struct {
	// TagKey is the struct tag consulted for names and options, "json" by default.
	TagKey string       `json:"tagKey"`
	Naming NamingPolicy `json:"naming"`
	// UnwrapEmbedded inlines embedded struct fields without an explicit tag name,
	// following encoding/json semantics.
	UnwrapEmbedded bool `json:"unwrapEmbedded"`
	// Types holds per-type member overrides keyed by "<package path>.<type name>".
	Types map[string]TypeConfig `json:"types,omitempty"`
}

// Default returns the profile mirroring encoding/json behavior.
func Default() Profile {
	return Profile{
		TagKey:         "json",
		Naming:         NamingGo,
		UnwrapEmbedded: true,
	}
}

// Configure registers an override for the property of the given type.
func (p *Profile) Configure(typ reflect.Type, property string, cfg MemberConfig) {
	if p.Types == nil {
		p.Types = make(map[string]TypeConfig)
	}
	key := TypeKey(typ)
	if p.Types[key] == nil {
		p.Types[key] = make(TypeConfig)
	}
	p.Types[key][property] = cfg
}

// Member returns the override registered for the property of the given type.
func (p Profile) Member(typ reflect.Type, property string) (MemberConfig, bool) {
	cfg, ok := p.Types[TypeKey(typ)][property]
	return cfg, ok
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	clone := p
	if p.Types == nil {
		return clone
	}
	clone.Types = make(map[string]TypeConfig, len(p.Types))
	for typ, members := range p.Types {
		clone.Types[typ] = maps.Clone(members)
	}
	return clone
}

// TypeKey returns the key under which overrides for the type are stored.
func TypeKey(typ reflect.Type) string {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil {
		return ""
	}
	if typ.PkgPath() == "" {
		return typ.String()
	}
	return typ.PkgPath() + "." + typ.Name()
}

var memberConfigValidator = govy.New(
	govy.For(func(m MemberConfig) Access { return m.Access }).
		WithName("access").
		Rules(rules.OneOf(AccessDefault, AccessReadOnly, AccessWriteOnly, AccessReadWrite)),
	govy.For(func(m MemberConfig) string { return m.Name }).
		WithName("name").
		Rules(rules.Forbidden[string]()).
		When(func(m MemberConfig) bool { return m.Unwrap }, govy.WhenDescription("member is unwrapped")),
).
	WithName("MemberConfig")

var profileValidator = govy.New(
	govy.For(func(p Profile) string { return p.TagKey }).
		WithName("tagKey").
		Required().
		Rules(rules.StringNotEmpty()),
	govy.For(func(p Profile) NamingPolicy { return p.Naming }).
		WithName("naming").
		Required().
		Rules(rules.OneOf(namingPolicies...)),
).
	WithName("Profile")

// Validate checks the profile and all of its member overrides.
func (p Profile) Validate() error {
	if err := profileValidator.Validate(p); err != nil {
		return err
	}
	for typ, members := range p.Types {
		if typ == "" {
			return errors.New("profile contains member overrides for an empty type key")
		}
		for name, cfg := range members {
			if err := memberConfigValidator.Validate(cfg); err != nil {
				return errors.Wrapf(err, "invalid override for %s property %q", typ, name)
			}
		}
	}
	return nil
}
