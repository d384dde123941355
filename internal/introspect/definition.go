package introspect

import (
	"reflect"

	"github.com/nieomylnieja/propdoc/internal/accessor"
)

// Direction is either serialization (producing the external representation)
// or deserialization (consuming it).
type Direction int

const (
	Serialization Direction = iota
	Deserialization
)

func (d Direction) String() string {
	switch d {
	case Serialization:
		return "serialization"
	case Deserialization:
		return "deserialization"
	default:
		return "unknown"
	}
}

// Member is the primary member of a property, the one treated as canonical
// for the given direction.
type Member struct {
	Name          string
	Kind          accessor.Kind
	Type          reflect.Type
	DeclaringType reflect.Type
	// Tag is only set for fields.
	Tag reflect.StructTag
}

// IsMethod reports whether the member is a getter or setter.
func (m *Member) IsMethod() bool { return m != nil && m.Kind != accessor.KindField }

// IsGetter reports whether the member is getter-shaped.
func (m *Member) IsGetter() bool { return m != nil && m.Kind == accessor.KindGetter }

// Definition is a single introspected property.
type Definition interface {
	// InternalName is the code-level property name, unique per type and direction.
	InternalName() string
	// GoName is the Go member name without its accessor prefix.
	GoName() string
	// PrimaryMember returns nil if the property has no member usable in the direction it was introspected for.
	PrimaryMember() *Member
	// IsUnwrapped reports whether the properties of the member's value type
	// should be inlined into the parent instead of the property itself.
	IsUnwrapped() bool
	// ExplicitName returns the external name configured with a struct tag or a profile override.
	ExplicitName() (string, bool)
}

type property struct {
	internalName string
	goName       string
	explicitName string
	unwrapped    bool
	primary      *Member
}

func (p *property) InternalName() string { return p.internalName }

func (p *property) GoName() string { return p.goName }

func (p *property) PrimaryMember() *Member { return p.primary }

func (p *property) IsUnwrapped() bool { return p.unwrapped }

func (p *property) ExplicitName() (string, bool) { return p.explicitName, p.explicitName != "" }
