package propdoc

import (
	"github.com/nieomylnieja/propdoc/internal/profile"
)

type (
	// Profile is the marshaling profile shared by the introspector and the naming strategy.
	Profile = profile.Profile
	// MemberConfig overrides the tag-derived configuration of a single property.
	MemberConfig = profile.MemberConfig
	NamingPolicy = profile.NamingPolicy
	Access       = profile.Access
)

const (
	NamingGo         = profile.NamingGo
	NamingLowerCamel = profile.NamingLowerCamel
	NamingUpperCamel = profile.NamingUpperCamel
	NamingSnakeCase  = profile.NamingSnakeCase
	NamingKebabCase  = profile.NamingKebabCase
	NamingLowerCase  = profile.NamingLowerCase

	AccessReadOnly  = profile.AccessReadOnly
	AccessWriteOnly = profile.AccessWriteOnly
	AccessReadWrite = profile.AccessReadWrite
)

// DefaultProfile returns the profile mirroring encoding/json behavior.
func DefaultProfile() Profile { return profile.Default() }

// LoadProfile reads a profile from a YAML, JSON or TOML file.
func LoadProfile(path string) (Profile, error) { return profile.Load(path) }
