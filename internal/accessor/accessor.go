package accessor

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind describes the shape of an accessor.
type Kind int

const (
	KindField Kind = iota
	KindGetter
	KindSetter
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindGetter:
		return "getter"
	case KindSetter:
		return "setter"
	default:
		return "unknown"
	}
}

// Candidate is a single member of a type which can read or write a property value.
type Candidate struct {
	// Name is the Go name of the method or field.
	Name string
	// Property is the internal property name derived from Name.
	Property string
	Kind     Kind
	// DeclaringType is the struct type the member was found on.
	DeclaringType reflect.Type
	// Type is the getter's result type, the setter's argument type or the field type.
	Type reflect.Type
	// Index is the field index, nil for methods.
	Index []int
	// Embedded is set for anonymous struct fields.
	Embedded bool
	// Unexported is set for unexported embedded structs,
	// they only contribute their promoted fields.
	Unexported bool
	// PromotedFrom is the index of the embedded field a method is promoted from,
	// nil for methods declared on the type itself.
	PromotedFrom []int
}

// IsGetter reports whether the candidate reads the property value.
// Fields are both readable and writable, but only getters are considered getter-shaped.
func (c Candidate) IsGetter() bool { return c.Kind == KindGetter }

// IsSetter reports whether the candidate is a setter method.
func (c Candidate) IsSetter() bool { return c.Kind == KindSetter }

// IsMethod reports whether the candidate is backed by a method.
func (c Candidate) IsMethod() bool { return c.Kind != KindField }

// Of returns all accessor candidates of the given type.
// Pointers are dereferenced, fields are listed first in declaration order,
// followed by the getters and setters found in the method set of *T.
// The method set includes methods promoted from embedded types.
// Unexported fields are skipped unless they embed a struct,
// encoding/json promotes the exported fields of those.
func Of(typ reflect.Type) []Candidate {
	if typ == nil {
		return nil
	}
	typ = Indirect(typ)

	var candidates []Candidate
	if typ.Kind() == reflect.Struct {
		for i := range typ.NumField() {
			field := typ.Field(i)
			unexported := !field.IsExported()
			if unexported && (!field.Anonymous || Indirect(field.Type).Kind() != reflect.Struct) {
				continue
			}
			candidates = append(candidates, Candidate{
				Name:          field.Name,
				Property:      Decapitalize(field.Name),
				Kind:          KindField,
				DeclaringType: typ,
				Type:          field.Type,
				Index:         field.Index,
				Embedded:      field.Anonymous,
				Unexported:    unexported,
			})
		}
	}

	promoted := promotedMethods(typ)
	ptr := reflect.PointerTo(typ)
	for i := range ptr.NumMethod() {
		method := ptr.Method(i)
		if c, ok := methodCandidate(typ, method); ok {
			c.PromotedFrom = promoted[method.Name]
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// promotedMethods maps the names of methods reachable through embedded fields
// to the index of the field they are promoted from.
// A method declared on the type itself shadowing a promoted one is reported as promoted.
func promotedMethods(typ reflect.Type) map[string][]int {
	if typ.Kind() != reflect.Struct {
		return nil
	}
	var promoted map[string][]int
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.Anonymous {
			continue
		}
		methods := field.Type
		if methods.Kind() != reflect.Interface && methods.Kind() != reflect.Pointer {
			methods = reflect.PointerTo(methods)
		}
		for j := range methods.NumMethod() {
			if promoted == nil {
				promoted = make(map[string][]int)
			}
			name := methods.Method(j).Name
			if _, ok := promoted[name]; !ok {
				promoted[name] = field.Index
			}
		}
	}
	return promoted
}

// Indirect dereferences pointer types until a non-pointer type is reached.
func Indirect(typ reflect.Type) reflect.Type {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}

var boolType = reflect.TypeFor[bool]()

// methodCandidate checks if the method has a getter or setter shape.
// Method types obtained from reflect.Type include the receiver as the first argument.
func methodCandidate(owner reflect.Type, method reflect.Method) (Candidate, bool) {
	mt := method.Type
	candidate := Candidate{
		Name:          method.Name,
		DeclaringType: owner,
	}
	switch {
	case hasAccessorPrefix(method.Name, "Get"):
		if mt.NumIn() != 1 || mt.NumOut() != 1 {
			return Candidate{}, false
		}
		candidate.Kind = KindGetter
		candidate.Type = mt.Out(0)
		candidate.Property = Decapitalize(method.Name[3:])
	case hasAccessorPrefix(method.Name, "Is"):
		if mt.NumIn() != 1 || mt.NumOut() != 1 || mt.Out(0) != boolType {
			return Candidate{}, false
		}
		candidate.Kind = KindGetter
		candidate.Type = mt.Out(0)
		candidate.Property = Decapitalize(method.Name[2:])
	case hasAccessorPrefix(method.Name, "Set"):
		if mt.NumIn() != 2 {
			return Candidate{}, false
		}
		switch mt.NumOut() {
		case 0:
		case 1:
			// Builder style setters return the receiver.
			if out := mt.Out(0); out != owner && out != reflect.PointerTo(owner) {
				return Candidate{}, false
			}
		default:
			return Candidate{}, false
		}
		candidate.Kind = KindSetter
		candidate.Type = mt.In(1)
		candidate.Property = Decapitalize(method.Name[3:])
	default:
		return Candidate{}, false
	}
	return candidate, true
}

func hasAccessorPrefix(name, prefix string) bool {
	rest, found := strings.CutPrefix(name, prefix)
	if !found || rest == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsUpper(r) || unicode.IsDigit(r)
}

// Decapitalize converts a Go member name into an internal property name.
// The leading run of upper-case letters is lower-cased, except for the last
// letter of the run if it starts a new word:
//
//	Name    -> name
//	ID      -> id
//	URLPath -> urlPath
func Decapitalize(name string) string {
	runes := []rune(name)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			break
		}
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(r)
	}
	return string(runes)
}
