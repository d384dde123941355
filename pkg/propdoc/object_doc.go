package propdoc

import (
	"reflect"
	"slices"
	"strings"

	"github.com/nieomylnieja/propdoc/internal/accessor"
	"github.com/nieomylnieja/propdoc/internal/typeinfo"
)

const rootPath = "$"

// generateModelDoc must be called with the read lock held.
func (p *Provider) generateModelDoc(goType reflect.Type, dir Direction) (ModelDoc, error) {
	goType = accessor.Indirect(goType)
	// Generate model properties based on the resolved properties.
	mapper := newObjectMapper(p, dir)
	if err := mapper.Map(goType, rootPath, nil); err != nil {
		return ModelDoc{}, err
	}

	modelDoc := ModelDoc{
		Name:       goType.Name(),
		Direction:  dir.String(),
		Properties: mapper.Properties,
	}
	// Add children paths to properties.
	// The object mapper does not provide this information, but rather returns a flat list of properties.
	for i, property := range modelDoc.Properties {
		property.ChildrenPaths = findPropertyChildrenPaths(property.Path, modelDoc.Properties)
		modelDoc.Properties[i] = property
	}
	return modelDoc, nil
}

func newObjectMapper(provider *Provider, dir Direction) *objectMapper {
	return &objectMapper{provider: provider, dir: dir}
}

type objectMapper struct {
	provider   *Provider
	dir        Direction
	expanding  []reflect.Type
	Properties []PropertyDoc
}

// Map adds the documentation of the value at path and descends into it.
// Struct types already being expanded higher up the path are not descended into again.
func (o *objectMapper) Map(typ reflect.Type, path string, source *ModelProperty) error {
	typ = accessor.Indirect(typ)

	doc := PropertyDoc{
		Path:      path,
		TypeInfo:  typeinfo.Get(typ),
		valueType: typ,
	}
	if source != nil {
		doc.Name = source.Name
		doc.Accessor = source.Accessor.Name
		doc.AccessorKind = source.Accessor.Kind.String()
		doc.declaringType = source.Accessor.DeclaringType
	}
	o.Properties = append(o.Properties, doc)

	switch typ.Kind() {
	case reflect.Struct:
		if slices.Contains(o.expanding, typ) {
			return nil
		}
		o.expanding = append(o.expanding, typ)
		defer func() { o.expanding = o.expanding[:len(o.expanding)-1] }()

		res, err := o.provider.resolveLocked(typ, o.dir)
		if err != nil {
			return err
		}
		for _, property := range res.Properties {
			if err = o.Map(property.Type, path+"."+property.Name, &property); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		return o.Map(typ.Elem(), path+"[*]", nil)
	case reflect.Map:
		if err := o.Map(typ.Key(), path+".~", nil); err != nil {
			return err
		}
		return o.Map(typ.Elem(), path+".*", nil)
	default:
	}
	return nil
}

func findPropertyChildrenPaths(parent string, properties []PropertyDoc) []string {
	childrenPaths := make([]string, 0, len(properties))
	for _, property := range properties {
		childRelativePath, found := strings.CutPrefix(property.Path, parent+".")
		if !found {
			continue
		}
		// Not an immediate child.
		if strings.ContainsAny(childRelativePath, ".[") {
			continue
		}
		childrenPaths = append(childrenPaths, parent+"."+childRelativePath)
	}
	return childrenPaths
}
