package propdoc

import (
	"reflect"

	"github.com/nieomylnieja/propdoc/internal/accessor"
	"github.com/nieomylnieja/propdoc/internal/introspect"
	"github.com/nieomylnieja/propdoc/internal/typeinfo"
)

type (
	// Direction is either [Serialization] or [Deserialization].
	Direction = introspect.Direction
	// Definition is a single introspected property.
	Definition = introspect.Definition
	// Member is the primary member of a [Definition].
	Member = introspect.Member
	// Accessor is the field or method backing a [ModelProperty].
	Accessor = accessor.Candidate
	// AccessorKind tells fields, getters and setters apart.
	AccessorKind = accessor.Kind
	// TypeInfo describes the Go type of a property value.
	TypeInfo = typeinfo.TypeInfo
)

const (
	Serialization   = introspect.Serialization
	Deserialization = introspect.Deserialization

	AccessorField  = accessor.KindField
	AccessorGetter = accessor.KindGetter
	AccessorSetter = accessor.KindSetter
)

// ModelProperty is a single resolved property of a model.
// It is not mutated after being returned.
type ModelProperty struct {
	// Name is the external (wire) name of the property, never empty.
	Name string
	// Accessor reads (serialization) or writes (deserialization) the property value.
	Accessor Accessor
	// Definition is the introspected property the model property was derived from.
	Definition Definition
	Direction  Direction
	// Type is the getter result type or field type for serialization
	// and the setter argument type or field type for deserialization,
	// unless an alternate type was registered for it with [WithAlternateType].
	Type     reflect.Type
	TypeInfo TypeInfo
}

// SkippedProperty describes a property which could not be resolved
// and was omitted from a deserialization [Resolution].
type SkippedProperty struct {
	// Type is the type declaring the property.
	Type     reflect.Type
	Property string
	Reason   error
}

// Resolution aggregates the outcome of resolving every property of a type.
type Resolution struct {
	Properties []ModelProperty
	// Skipped is only populated for [Deserialization].
	Skipped []SkippedProperty
}
