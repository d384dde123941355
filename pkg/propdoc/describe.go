package propdoc

import (
	"reflect"

	"github.com/nobl9/govy/pkg/govy"
	"github.com/pkg/errors"

	"github.com/nieomylnieja/propdoc/internal/godoc"
)

type ModelDoc struct {
	Name       string        `json:"name"`
	Direction  string        `json:"direction"`
	Properties []PropertyDoc `json:"properties"`
	Doc        string        `json:"doc,omitempty"`
}

type PropertyDoc struct {
	// Path is the JSONPath of the property, the model itself is "$".
	Path string `json:"path"`
	// Name is the external name of the property, empty for the root and collection elements.
	Name string `json:"name,omitempty"`
	// Accessor is the name of the field or method backing the property.
	Accessor     string   `json:"accessor,omitempty"`
	AccessorKind string   `json:"accessorKind,omitempty"`
	TypeInfo     TypeInfo `json:"typeInfo"`
	// TypeDoc holds the documentation for the given type.
	// For instance, if property is an object of type X,
	// the TypeDoc will contain the X's documentation.
	TypeDoc string `json:"typeDoc,omitempty"`
	// FieldDoc holds the documentation of the struct field or accessor method backing the property.
	FieldDoc string `json:"fieldDoc,omitempty"`
	// DeprecatedDoc holds property's "Deprecated:" comment contents.
	DeprecatedDoc string   `json:"deprecatedDoc,omitempty"`
	ChildrenPaths []string `json:"childrenPaths,omitempty"`
	// Validation holds the govy plan of the property, if one was provided.
	Validation *govy.PropertyPlan `json:"validation,omitempty"`

	valueType     reflect.Type
	declaringType reflect.Type
}

// GoDocParser extracts godoc comments of the types loaded from the current module.
type GoDocParser = godoc.Parser

type GoDocParserOption = godoc.ParserOption

// WithModuleDir makes [NewGoDocParser] load the module containing dir.
// By default the module containing the working directory is loaded.
var WithModuleDir = godoc.WithModuleDir

// NewGoDocParser loads all packages of a module, along with their dependencies.
// Loading is expensive, the parser should be created once and shared.
func NewGoDocParser(opts ...GoDocParserOption) (*GoDocParser, error) {
	return godoc.NewParser(opts...)
}

// describeOptions contains options for configuring the behavior of the [Provider.Describe] function.
type describeOptions struct {
	goDocParser     *GoDocParser
	plan            *govy.ValidatorPlan
	govyPlanOptions []govy.PlanOption
	filterPaths     []string
}

type DescribeOption func(options describeOptions) describeOptions

// WithGoDoc merges godoc comments extracted with the parser into the property docs.
func WithGoDoc(parser *GoDocParser) DescribeOption {
	return func(options describeOptions) describeOptions {
		options.goDocParser = parser
		return options
	}
}

// WithValidationPlan attaches the govy property plans to the properties with matching paths.
func WithValidationPlan(plan *govy.ValidatorPlan) DescribeOption {
	return func(options describeOptions) describeOptions {
		options.plan = plan
		return options
	}
}

// GovyPlanOptions allows you to provide [govy.PlanOption] to the [govy.Plan] called by [DescribeValidated].
func GovyPlanOptions(govyOptions ...govy.PlanOption) DescribeOption {
	return func(options describeOptions) describeOptions {
		options.govyPlanOptions = append(options.govyPlanOptions, govyOptions...)
		return options
	}
}

// WithFilteredPaths specifies property paths that should be excluded from the generated documentation.
// Paths use JSONPath notation (e.g., "$.organization", "$.metadata.internal").
func WithFilteredPaths(paths ...string) DescribeOption {
	return func(options describeOptions) describeOptions {
		options.filterPaths = append(options.filterPaths, paths...)
		return options
	}
}

// DescribeValidated describes T and extends the documentation with the validation plan of the validator.
func DescribeValidated[T any](
	p *Provider,
	validator govy.Validator[T],
	dir Direction,
	opts ...DescribeOption,
) (ModelDoc, error) {
	options := describeOptions{}
	for _, opt := range opts {
		options = opt(options)
	}
	plan, err := govy.Plan(validator, options.govyPlanOptions...)
	if err != nil {
		var t T
		return ModelDoc{}, errors.Wrapf(err, "failed to generate validation plan for %T", t)
	}
	return p.Describe(reflect.TypeFor[T](), dir, append(opts, WithValidationPlan(plan))...)
}

// Describe documents every property of the type reachable in the given direction.
// Unlike [Provider.Resolve] it also descends into struct-valued properties,
// collection elements and map keys and values.
func (p *Provider) Describe(typ reflect.Type, dir Direction, opts ...DescribeOption) (ModelDoc, error) {
	if typ == nil {
		return ModelDoc{}, ErrNilType
	}
	options := describeOptions{}
	for _, opt := range opts {
		options = opt(options)
	}

	p.mu.RLock()
	modelDoc, err := p.generateModelDoc(typ, dir)
	p.mu.RUnlock()
	if err != nil {
		return ModelDoc{}, err
	}
	if options.goDocParser != nil {
		goDocs, err := parseGoDocs(options.goDocParser, modelDoc.Properties)
		if err != nil {
			return ModelDoc{}, err
		}
		mergeDocs(&modelDoc, goDocs)
	}
	if options.plan != nil {
		modelDoc.extendWithValidationPlan(options.plan)
	}
	return postProcessProperties(modelDoc, options.filterPaths,
		removeEnumDeclaration,
		extractDeprecatedInformation,
		removeTrailingWhitespace,
	), nil
}

// parseGoDocs parses the documentation of every named value type and accessor declaring type.
func parseGoDocs(parser *GoDocParser, properties []PropertyDoc) (godoc.Docs, error) {
	docs := make(godoc.Docs)
	for _, property := range properties {
		for _, typ := range []reflect.Type{property.valueType, property.declaringType} {
			if typ == nil || typ.PkgPath() == "" {
				continue
			}
			if _, parsed := docs[godoc.Key(typ)]; parsed {
				continue
			}
			parsed, err := parser.Parse(typ)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse documentation of %s", typ)
			}
			for key, doc := range parsed {
				docs[key] = doc
			}
		}
	}
	return docs, nil
}

func mergeDocs(modelDoc *ModelDoc, goDocs godoc.Docs) {
	for i, property := range modelDoc.Properties {
		if property.valueType != nil && property.valueType.PkgPath() != "" {
			if goDoc, found := goDocs[godoc.Key(property.valueType)]; found {
				property.TypeDoc = goDoc.Doc
			}
		}
		if property.declaringType != nil {
			if owner, found := goDocs[godoc.Key(property.declaringType)]; found {
				property.FieldDoc = accessorDoc(owner, property)
			}
		}
		if property.Path == rootPath {
			modelDoc.Doc = property.TypeDoc
		}
		modelDoc.Properties[i] = property
	}
}

func accessorDoc(owner godoc.Doc, property PropertyDoc) string {
	if property.AccessorKind == AccessorField.String() {
		return owner.StructFields[property.Accessor].Doc
	}
	return owner.Methods[property.Accessor].Doc
}

// extendWithValidationPlan extends [ModelDoc.Properties] with [govy.ValidatorPlan] results.
func (m *ModelDoc) extendWithValidationPlan(plan *govy.ValidatorPlan) {
	if plan.Name != "" {
		m.Name = plan.Name
	}
	for _, propPlan := range plan.Properties {
		for i, propDoc := range m.Properties {
			if propPlan.Path != propDoc.Path {
				continue
			}
			m.Properties[i].Validation = propPlan
			break
		}
	}
}
