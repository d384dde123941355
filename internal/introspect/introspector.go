// Package introspect derives the direction-specific property definitions of a Go type
// from its structure, struct tags and the active marshaling profile.
package introspect

import (
	"encoding"
	"encoding/json"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/nieomylnieja/propdoc/internal/accessor"
	"github.com/nieomylnieja/propdoc/internal/profile"
)

// ErrNilType is returned when a nil [reflect.Type] is introspected.
var ErrNilType = errors.New("type must not be nil")

// Introspector returns the canonical property definitions of a type for the given direction.
type Introspector interface {
	Introspect(typ reflect.Type, dir Direction) ([]Definition, error)
}

// Configurable is implemented by collaborators which depend on the active [profile.Profile].
// Configure must be called before the first use.
type Configurable interface {
	Configure(p profile.Profile) error
}

// NewReflect creates an [Introspector] based on reflection and struct tags.
func NewReflect(p profile.Profile) (*Reflect, error) {
	r := &Reflect{}
	if err := r.Configure(p); err != nil {
		return nil, err
	}
	return r, nil
}

// Reflect introspects struct fields and accessor methods using reflection.
// It is safe for concurrent use, the profile can be swapped with [Reflect.Configure].
type Reflect struct {
	profile atomic.Pointer[profile.Profile]
}

// Configure installs the profile used by subsequent introspection calls.
func (r *Reflect) Configure(p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "invalid marshaling profile")
	}
	p = p.Clone()
	r.profile.Store(&p)
	return nil
}

func (r *Reflect) current() profile.Profile {
	if p := r.profile.Load(); p != nil {
		return *p
	}
	return profile.Default()
}

// Introspect returns the definitions visible in the given direction, in the order
// their first member appears in [accessor.Of].
//
// For serialization a property needs a getter or a field, the getter takes precedence.
// For deserialization a property needs a setter or a field, the setter takes precedence.
func (r *Reflect) Introspect(typ reflect.Type, dir Direction) ([]Definition, error) {
	if typ == nil {
		return nil, ErrNilType
	}
	prof := r.current()
	typ = accessor.Indirect(typ)
	if hasCustomRepresentation(typ, dir) {
		return nil, nil
	}

	candidates := withoutPromotedAccessors(prof, typ, accessor.Of(typ), dir)
	groups := groupCandidates(candidates)
	definitions := make([]Definition, 0, len(groups))
	for _, group := range groups {
		if def := newDefinition(prof, typ, group, dir); def != nil {
			definitions = append(definitions, def)
		}
	}
	return definitions, nil
}

var (
	jsonMarshalerType   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// hasCustomRepresentation reports whether the type controls its own encoding,
// like [time.Time] does, in which case it exposes no properties.
func hasCustomRepresentation(typ reflect.Type, dir Direction) bool {
	ptr := reflect.PointerTo(typ)
	switch dir {
	case Serialization:
		return ptr.Implements(jsonMarshalerType) || ptr.Implements(textMarshalerType)
	case Deserialization:
		return ptr.Implements(jsonUnmarshalerType) || ptr.Implements(textUnmarshalerType)
	default:
		return false
	}
}

// memberGroup holds all members backing a single internal property name.
type memberGroup struct {
	property string
	field    *accessor.Candidate
	getter   *accessor.Candidate
	setter   *accessor.Candidate
}

func groupCandidates(candidates []accessor.Candidate) []*memberGroup {
	var groups []*memberGroup
	index := make(map[string]*memberGroup, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		group, ok := index[c.Property]
		if !ok {
			group = &memberGroup{property: c.Property}
			index[c.Property] = group
			groups = append(groups, group)
		}
		// First member of each kind wins, GetX sorts before IsX.
		switch c.Kind {
		case accessor.KindField:
			if group.field == nil {
				group.field = c
			}
		case accessor.KindGetter:
			if group.getter == nil {
				group.getter = c
			}
		case accessor.KindSetter:
			if group.setter == nil {
				group.setter = c
			}
		}
	}
	return groups
}

// withoutPromotedAccessors drops the methods promoted from embedded fields which are unwrapped,
// the unwrapped field already contributes them as properties of the embedded type.
func withoutPromotedAccessors(
	prof profile.Profile,
	typ reflect.Type,
	candidates []accessor.Candidate,
	dir Direction,
) []accessor.Candidate {
	unwrapped := make(map[int]bool)
	for i := range candidates {
		field := &candidates[i]
		if field.Kind != accessor.KindField || !field.Embedded {
			continue
		}
		override, _ := prof.Member(typ, field.Property)
		if excluded(override, dir) {
			continue
		}
		tag := parseTag(prof.TagKey, field)
		if !tag.ignored && isUnwrapped(prof, override, tag, field) {
			unwrapped[field.Index[0]] = true
		}
	}
	if len(unwrapped) == 0 {
		return candidates
	}
	return slices.DeleteFunc(candidates, func(c accessor.Candidate) bool {
		return c.IsMethod() && len(c.PromotedFrom) > 0 && unwrapped[c.PromotedFrom[0]]
	})
}

// excluded reports whether the override hides the property in the given direction.
func excluded(override profile.MemberConfig, dir Direction) bool {
	switch {
	case override.Ignore:
		return true
	case dir == Serialization && override.Access == profile.AccessWriteOnly:
		return true
	case dir == Deserialization && override.Access == profile.AccessReadOnly:
		return true
	default:
		return false
	}
}

func isUnwrapped(prof profile.Profile, override profile.MemberConfig, tag fieldTag, field *accessor.Candidate) bool {
	return override.Unwrap || tag.hasOption("inline") ||
		(prof.UnwrapEmbedded && isEmbeddedStruct(field) && tag.name == "")
}

func newDefinition(prof profile.Profile, typ reflect.Type, group *memberGroup, dir Direction) *property {
	override, _ := prof.Member(typ, group.property)
	if excluded(override, dir) {
		return nil
	}

	var tag fieldTag
	if group.field != nil {
		tag = parseTag(prof.TagKey, group.field)
		if tag.ignored {
			return nil
		}
	}

	primary := group.primaryFor(dir)
	if primary == nil {
		return nil
	}

	def := &property{
		internalName: group.property,
		goName:       group.goName(),
		primary: &Member{
			Name:          primary.Name,
			Kind:          primary.Kind,
			Type:          primary.Type,
			DeclaringType: primary.DeclaringType,
		},
	}
	if primary.Kind == accessor.KindField {
		def.primary.Tag = tag.raw
	}
	def.unwrapped = isUnwrapped(prof, override, tag, group.field)
	if primary.Unexported && !def.unwrapped {
		return nil
	}
	switch {
	case override.Name != "":
		def.explicitName = override.Name
	case !def.unwrapped:
		def.explicitName = tag.name
	}
	return def
}

func (g *memberGroup) primaryFor(dir Direction) *accessor.Candidate {
	var preferred *accessor.Candidate
	switch dir {
	case Serialization:
		preferred = g.getter
	case Deserialization:
		preferred = g.setter
	default:
		return nil
	}
	if preferred != nil {
		return preferred
	}
	return g.field
}

func (g *memberGroup) goName() string {
	switch {
	case g.field != nil:
		return g.field.Name
	case g.getter != nil:
		if name, ok := strings.CutPrefix(g.getter.Name, "Get"); ok {
			return name
		}
		return strings.TrimPrefix(g.getter.Name, "Is")
	case g.setter != nil:
		return strings.TrimPrefix(g.setter.Name, "Set")
	default:
		return ""
	}
}

func isEmbeddedStruct(field *accessor.Candidate) bool {
	return field != nil && field.Embedded && accessor.Indirect(field.Type).Kind() == reflect.Struct
}

type fieldTag struct {
	raw     reflect.StructTag
	name    string
	options []string
	ignored bool
}

func (t fieldTag) hasOption(option string) bool {
	return slices.Contains(t.options, option)
}

// parseTag follows encoding/json tag conventions: "-" ignores the field,
// "-," names it "-".
func parseTag(key string, field *accessor.Candidate) fieldTag {
	raw := field.DeclaringType.FieldByIndex(field.Index).Tag
	value := raw.Get(key)
	if value == "-" {
		return fieldTag{raw: raw, ignored: true}
	}
	name, opts, _ := strings.Cut(value, ",")
	tag := fieldTag{raw: raw, name: name}
	if opts != "" {
		tag.options = strings.Split(opts, ",")
	}
	return tag
}
