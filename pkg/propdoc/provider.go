package propdoc

import (
	"reflect"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nieomylnieja/propdoc/internal/accessor"
	"github.com/nieomylnieja/propdoc/internal/introspect"
	"github.com/nieomylnieja/propdoc/internal/naming"
	"github.com/nieomylnieja/propdoc/internal/profile"
	"github.com/nieomylnieja/propdoc/internal/typeinfo"
)

var (
	// ErrNilType is returned when a nil [reflect.Type] is resolved.
	ErrNilType = introspect.ErrNilType
	// ErrCyclicUnwrap is returned when an unwrapped property leads back to a type
	// which is already being expanded.
	ErrCyclicUnwrap = errors.New("cyclic unwrap")
	// ErrUnwrapNonStruct is returned when an unwrapped property's value is not a struct.
	ErrUnwrapNonStruct = errors.New("only struct values can be unwrapped")
	// ErrEmptyName is returned when the naming strategy produces an empty external name.
	ErrEmptyName = errors.New("empty external property name")
)

type (
	// Introspector returns the canonical property definitions of a type.
	Introspector = introspect.Introspector
	// NamingStrategy maps property definitions to external names.
	NamingStrategy = naming.Strategy
)

// providerOptions contains options for configuring the [Provider].
type providerOptions struct {
	profile      profile.Profile
	logger       *zap.Logger
	introspector Introspector
	naming       NamingStrategy
	alternates   map[reflect.Type]reflect.Type
}

type Option func(options providerOptions) providerOptions

// WithProfile sets the initial marshaling profile, [DefaultProfile] is used otherwise.
func WithProfile(p Profile) Option {
	return func(options providerOptions) providerOptions {
		options.profile = p
		return options
	}
}

// WithLogger sets the logger used to report skipped properties.
func WithLogger(logger *zap.Logger) Option {
	return func(options providerOptions) providerOptions {
		options.logger = logger
		return options
	}
}

// WithIntrospector replaces the reflection based [Introspector].
// If it implements Configure(Profile) error, it receives every installed profile.
func WithIntrospector(introspector Introspector) Option {
	return func(options providerOptions) providerOptions {
		options.introspector = introspector
		return options
	}
}

// WithNamingStrategy replaces the profile based [NamingStrategy].
func WithNamingStrategy(strategy NamingStrategy) Option {
	return func(options providerOptions) providerOptions {
		options.naming = strategy
		return options
	}
}

// WithAlternateType documents properties of the original type as if they had the alternate type.
// It is meant for types with custom marshaling, e.g. a struct which is serialized as a string.
// Pointers to the original type are substituted as well.
// The accessor of the property keeps its real type.
func WithAlternateType(original, alternate reflect.Type) Option {
	return func(options providerOptions) providerOptions {
		if options.alternates == nil {
			options.alternates = make(map[reflect.Type]reflect.Type)
		}
		options.alternates[original] = alternate
		return options
	}
}

// Provider resolves the documented properties of Go types.
// It is safe for concurrent use as long as its collaborators are.
type Provider struct {
	// mu guards the installed profile: a resolution holds it for reading
	// so that it observes a single profile in every collaborator.
	mu           sync.RWMutex
	profile      *Profile
	introspector Introspector
	naming       NamingStrategy
	alternates   map[reflect.Type]reflect.Type
	logger       *zap.Logger
}

// NewProvider creates a [Provider] and installs the initial profile into its collaborators.
func NewProvider(opts ...Option) (*Provider, error) {
	options := providerOptions{profile: profile.Default()}
	for _, opt := range opts {
		options = opt(options)
	}
	p := &Provider{
		introspector: options.introspector,
		naming:       options.naming,
		alternates:   options.alternates,
		logger:       options.logger,
	}
	if p.introspector == nil {
		p.introspector = &introspect.Reflect{}
	}
	if p.naming == nil {
		p.naming = &naming.ProfileStrategy{}
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if err := p.SetProfile(options.profile); err != nil {
		return nil, err
	}
	return p, nil
}

// SetProfile installs the active marshaling profile into the naming strategy
// and, if it is configurable, the introspector.
// It waits for the resolutions in progress, which finish with the previous profile.
// If the naming strategy rejects the profile, the introspector is restored to the previous one.
func (p *Provider) SetProfile(prof Profile) error {
	if err := prof.Validate(); err != nil {
		return errors.Wrap(err, "invalid marshaling profile")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	configurable, _ := p.introspector.(introspect.Configurable)
	if configurable != nil {
		if err := configurable.Configure(prof); err != nil {
			return errors.Wrap(err, "failed to configure introspector")
		}
	}
	if err := p.naming.Configure(prof); err != nil {
		if configurable != nil && p.profile != nil {
			if restoreErr := configurable.Configure(*p.profile); restoreErr != nil {
				p.logger.Error("failed to restore introspector profile", zap.Error(restoreErr))
			}
		}
		return errors.Wrap(err, "failed to configure naming strategy")
	}
	installed := prof.Clone()
	p.profile = &installed
	return nil
}

// WatchProfile loads the profile file and installs it,
// then keeps installing every valid revision of the file until stop is called.
func (p *Provider) WatchProfile(path string) (stop func() error, err error) {
	return profile.Watch(path,
		func(prof profile.Profile) error {
			if err := p.SetProfile(prof); err != nil {
				return err
			}
			p.logger.Info("marshaling profile installed", zap.String("path", path))
			return nil
		},
		func(err error) {
			p.logger.Error("failed to reload profile", zap.String("path", path), zap.Error(err))
		},
	)
}

// PropertiesForSerialization returns the properties written when a value of the type is serialized.
// Any fault while resolving a property is returned as an error.
func (p *Provider) PropertiesForSerialization(typ reflect.Type) ([]ModelProperty, error) {
	res, err := p.Resolve(typ, Serialization)
	if err != nil {
		return nil, err
	}
	return res.Properties, nil
}

// PropertiesForDeserialization returns the properties read when a value of the type is deserialized.
// Properties which fail to resolve are logged and omitted, only introspection failures are returned.
func (p *Provider) PropertiesForDeserialization(typ reflect.Type) ([]ModelProperty, error) {
	res, err := p.Resolve(typ, Deserialization)
	if err != nil {
		return nil, err
	}
	return res.Properties, nil
}

// Resolve resolves every property of the type for the given direction.
// Unwrapped properties are replaced with the properties of their value type.
// The order follows the introspected definitions, with unwrapped properties expanded in place.
func (p *Provider) Resolve(typ reflect.Type, dir Direction) (Resolution, error) {
	if typ == nil {
		return Resolution{}, ErrNilType
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolveLocked(typ, dir)
}

// resolveLocked is [Provider.Resolve] for callers which already hold the read lock.
func (p *Provider) resolveLocked(typ reflect.Type, dir Direction) (Resolution, error) {
	r := resolver{Provider: p, dir: dir}
	typ = accessor.Indirect(typ)
	return r.resolve(typ, []reflect.Type{typ})
}

// documentedType returns the type the property is documented with.
func (p *Provider) documentedType(typ reflect.Type) reflect.Type {
	if alternate, ok := p.alternates[typ]; ok {
		return alternate
	}
	if alternate, ok := p.alternates[accessor.Indirect(typ)]; ok {
		return alternate
	}
	return typ
}

// resolver holds the state of a single resolution call.
type resolver struct {
	*Provider
	dir Direction
}

// definitionOutcome is the result of resolving a single definition.
// Unresolvable definitions have neither properties nor an error.
type definitionOutcome struct {
	properties []ModelProperty
	skipped    []SkippedProperty
	err        error
}

// resolve resolves the properties of typ; stack holds the types currently being expanded.
func (r resolver) resolve(typ reflect.Type, stack []reflect.Type) (Resolution, error) {
	definitions, err := r.introspector.Introspect(typ, r.dir)
	if err != nil {
		return Resolution{}, errors.Wrapf(err, "failed to introspect %s for %s", typ, r.dir)
	}
	candidates := accessor.Of(typ)

	var res Resolution
	for _, def := range uniqueDefinitions(definitions) {
		var outcome definitionOutcome
		if r.dir == Deserialization {
			outcome = r.resolveDefinitionIsolated(typ, def, candidates, stack)
		} else {
			outcome = r.resolveDefinition(typ, def, candidates, stack)
		}
		if outcome.err != nil {
			if r.dir == Serialization {
				return Resolution{}, outcome.err
			}
			r.logger.Warn("skipping property",
				zap.Stringer("type", typ),
				zap.String("property", def.InternalName()),
				zap.Stringer("direction", r.dir),
				zap.Error(outcome.err))
			res.Skipped = append(res.Skipped, SkippedProperty{
				Type:     typ,
				Property: def.InternalName(),
				Reason:   outcome.err,
			})
			continue
		}
		res.Properties = append(res.Properties, outcome.properties...)
		res.Skipped = append(res.Skipped, outcome.skipped...)
	}
	return res, nil
}

// resolveDefinitionIsolated converts panics raised by the collaborators into a definition fault.
func (r resolver) resolveDefinitionIsolated(
	typ reflect.Type,
	def Definition,
	candidates []accessor.Candidate,
	stack []reflect.Type,
) (outcome definitionOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = definitionOutcome{err: errors.Errorf("panic while resolving %s property: %v", typ, rec)}
		}
	}()
	return r.resolveDefinition(typ, def, candidates, stack)
}

func (r resolver) resolveDefinition(
	typ reflect.Type,
	def Definition,
	candidates []accessor.Candidate,
	stack []reflect.Type,
) definitionOutcome {
	member := def.PrimaryMember()
	candidate, found := findAccessor(candidates, def.InternalName(), member)
	if !found {
		r.logger.Debug("no accessor found for property",
			zap.Stringer("type", typ),
			zap.String("property", def.InternalName()),
			zap.Stringer("direction", r.dir))
		return definitionOutcome{}
	}
	if def.IsUnwrapped() {
		return r.unwrap(typ, def, candidate, stack)
	}

	name := r.naming.Name(def, r.dir)
	if name == "" {
		return definitionOutcome{err: errors.Wrapf(ErrEmptyName, "%s property %q", typ, def.InternalName())}
	}
	valueType := r.documentedType(candidate.Type)
	return definitionOutcome{properties: []ModelProperty{{
		Name:       name,
		Accessor:   candidate,
		Definition: def,
		Direction:  r.dir,
		Type:       valueType,
		TypeInfo:   typeinfo.Get(valueType),
	}}}
}

// unwrap replaces the property with the properties of its value type:
// the getter result type, the setter argument type or the field type.
func (r resolver) unwrap(
	typ reflect.Type,
	def Definition,
	candidate accessor.Candidate,
	stack []reflect.Type,
) definitionOutcome {
	target := accessor.Indirect(candidate.Type)
	if target == nil || target.Kind() != reflect.Struct {
		return definitionOutcome{err: errors.Wrapf(ErrUnwrapNonStruct,
			"%s property %q has type %s", typ, def.InternalName(), candidate.Type)}
	}
	if slices.Contains(stack, target) {
		return definitionOutcome{err: errors.Wrapf(ErrCyclicUnwrap,
			"%s property %q unwraps %s which is already being expanded", typ, def.InternalName(), target)}
	}
	nested, err := r.resolve(target, append(slices.Clip(stack), target))
	if err != nil {
		return definitionOutcome{err: errors.Wrapf(err, "failed to unwrap %s property %q", typ, def.InternalName())}
	}
	return definitionOutcome{properties: nested.Properties, skipped: nested.Skipped}
}

// findAccessor finds the candidate matching both the primary member's name and the internal property name.
func findAccessor(candidates []accessor.Candidate, property string, member *Member) (accessor.Candidate, bool) {
	if member == nil || member.Name == "" {
		return accessor.Candidate{}, false
	}
	for _, c := range candidates {
		if c.Name == member.Name && c.Property == property {
			return c, true
		}
	}
	return accessor.Candidate{}, false
}

// uniqueDefinitions keeps a single definition per internal name.
// The last definition wins and takes the position of the first one.
func uniqueDefinitions(definitions []Definition) []Definition {
	positions := make(map[string]int, len(definitions))
	unique := make([]Definition, 0, len(definitions))
	for _, def := range definitions {
		if def == nil {
			continue
		}
		if i, ok := positions[def.InternalName()]; ok {
			unique[i] = def
			continue
		}
		positions[def.InternalName()] = len(unique)
		unique = append(unique, def)
	}
	return unique
}
