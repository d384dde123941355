package propdoc

import (
	"encoding/json"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nieomylnieja/propdoc/internal/testmodels"
)

func TestProvider_PropertiesForSerialization(t *testing.T) {
	provider := newTestProvider(t)

	t.Run("one property per field", func(t *testing.T) {
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Order]())
		require.NoError(t, err)
		require.Len(t, props, 6, spew.Sdump(props))
		assert.Equal(t, []string{"number", "status", "items", "customer", "customerId", "Tags"}, propertyNames(props))
		for _, prop := range props {
			assert.Equal(t, AccessorField, prop.Accessor.Kind)
			assert.Equal(t, Serialization, prop.Direction)
			assert.Equal(t, prop.Accessor.Type, prop.Type)
		}
		assert.Equal(t, "Status", props[1].TypeInfo.Name)
		assert.Equal(t, "map[string]int", props[2].TypeInfo.Name)
	})

	t.Run("pointer types resolve like their element", func(t *testing.T) {
		expected, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Order]())
		require.NoError(t, err)
		actual, err := provider.PropertiesForSerialization(reflect.TypeFor[*testmodels.Order]())
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	})

	t.Run("inline properties are spliced in place", func(t *testing.T) {
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Address]())
		require.NoError(t, err)
		assert.Equal(t, []string{"street", "name", "zip"}, propertyNames(props))
		assert.Equal(t, reflect.TypeFor[testmodels.Address](), props[0].Accessor.DeclaringType)
		assert.Equal(t, reflect.TypeFor[testmodels.CityInfo](), props[1].Accessor.DeclaringType)
		assert.Equal(t, "Name", props[1].Accessor.Name)
	})

	t.Run("embedded structs are spliced in place", func(t *testing.T) {
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Employee]())
		require.NoError(t, err)
		assert.Equal(t, []string{"firstName", "lastName", "title"}, propertyNames(props))
	})

	t.Run("embedded accessors are listed once", func(t *testing.T) {
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Invoice]())
		require.NoError(t, err)
		require.Len(t, props, 3, spew.Sdump(props))
		assert.Equal(t, []string{"author", "Revision", "total"}, propertyNames(props))
		assert.Equal(t, "GetRevision", props[1].Accessor.Name)
		assert.Equal(t, reflect.TypeFor[testmodels.Audit](), props[1].Accessor.DeclaringType)
	})

	t.Run("unexported embedded structs", func(t *testing.T) {
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Ledger]())
		require.NoError(t, err)
		assert.Equal(t, []string{"account", "balance"}, propertyNames(props))

		data, err := json.Marshal(testmodels.Ledger{})
		require.NoError(t, err)
		var encoded map[string]any
		require.NoError(t, json.Unmarshal(data, &encoded))
		assert.ElementsMatch(t, slices.Collect(maps.Keys(encoded)), propertyNames(props))
	})

	t.Run("getters", func(t *testing.T) {
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Equal(t, []string{"Address", "CreatedAt", "ID", "Name", "Active"}, propertyNames(props))
		for _, prop := range props {
			assert.True(t, prop.Accessor.IsGetter(), prop.Name)
		}
		assert.Equal(t, reflect.TypeFor[time.Time](), props[1].Type)
		assert.Equal(t, "IsActive", props[4].Accessor.Name)
	})

	t.Run("recursive types which are not unwrapped", func(t *testing.T) {
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Category]())
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "children"}, propertyNames(props))
	})

	t.Run("cyclic unwrap", func(t *testing.T) {
		_, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Node]())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCyclicUnwrap)
	})

	t.Run("unwrap of a non-struct value", func(t *testing.T) {
		_, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Shipment]())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnwrapNonStruct)
		assert.Contains(t, err.Error(), `property "notes"`)
	})

	t.Run("nil type", func(t *testing.T) {
		_, err := provider.PropertiesForSerialization(nil)
		assert.ErrorIs(t, err, ErrNilType)
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		first, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		second, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestProvider_PropertiesForDeserialization(t *testing.T) {
	t.Run("setters", func(t *testing.T) {
		provider := newTestProvider(t)
		props, err := provider.PropertiesForDeserialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Equal(t, []string{"Address", "ID", "Name", "Password"}, propertyNames(props))
		for _, prop := range props {
			assert.True(t, prop.Accessor.IsSetter(), prop.Name)
			assert.Equal(t, Deserialization, prop.Direction)
		}
		assert.Equal(t, "SetName", props[2].Accessor.Name)
		assert.Equal(t, reflect.TypeFor[string](), props[2].Type)
	})

	t.Run("faulty properties are skipped", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		provider := newTestProvider(t, WithLogger(zap.New(core)))

		res, err := provider.Resolve(reflect.TypeFor[testmodels.Shipment](), Deserialization)
		require.NoError(t, err)
		assert.Equal(t, []string{"tracking", "weight"}, propertyNames(res.Properties))
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, "notes", res.Skipped[0].Property)
		assert.Equal(t, reflect.TypeFor[testmodels.Shipment](), res.Skipped[0].Type)
		assert.ErrorIs(t, res.Skipped[0].Reason, ErrUnwrapNonStruct)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "skipping property", entry.Message)
		assert.Equal(t, "notes", entry.ContextMap()["property"])
		assert.Equal(t, "deserialization", entry.ContextMap()["direction"])
	})

	t.Run("cyclic unwrap is skipped", func(t *testing.T) {
		provider := newTestProvider(t)
		res, err := provider.Resolve(reflect.TypeFor[testmodels.Node](), Deserialization)
		require.NoError(t, err)
		assert.Equal(t, []string{"value"}, propertyNames(res.Properties))
		require.Len(t, res.Skipped, 1)
		assert.ErrorIs(t, res.Skipped[0].Reason, ErrCyclicUnwrap)
	})

	t.Run("embedded accessors are listed once", func(t *testing.T) {
		provider := newTestProvider(t)
		props, err := provider.PropertiesForDeserialization(reflect.TypeFor[testmodels.Invoice]())
		require.NoError(t, err)
		assert.Equal(t, []string{"author", "Revision", "total"}, propertyNames(props))
		assert.Equal(t, "SetRevision", props[1].Accessor.Name)
	})

	t.Run("ignored fields", func(t *testing.T) {
		provider := newTestProvider(t)
		props, err := provider.PropertiesForDeserialization(reflect.TypeFor[testmodels.Employee]())
		require.NoError(t, err)
		assert.Equal(t, []string{"firstName", "lastName", "title"}, propertyNames(props))
	})
}

type twoFields struct {
	A string
	B int
}

type fakeDefinition struct {
	internalName string
	explicitName string
	member       *Member
	unwrapped    bool
}

func (f fakeDefinition) InternalName() string { return f.internalName }
func (f fakeDefinition) GoName() string { return f.internalName }
func (f fakeDefinition) PrimaryMember() *Member { return f.member }
func (f fakeDefinition) IsUnwrapped() bool { return f.unwrapped }
func (f fakeDefinition) ExplicitName() (string, bool) { return f.explicitName, f.explicitName != "" }

type fakeIntrospector struct {
	definitions []Definition
	err         error
}

func (f fakeIntrospector) Introspect(reflect.Type, Direction) ([]Definition, error) {
	return f.definitions, f.err
}

type fakeNaming struct {
	names   map[string]string
	panicOn string
}

func (f fakeNaming) Configure(Profile) error { return nil }

func (f fakeNaming) Name(def Definition, _ Direction) string {
	if def.InternalName() == f.panicOn {
		panic("boom")
	}
	if name, ok := f.names[def.InternalName()]; ok {
		return name
	}
	return def.GoName()
}

func fieldDefinition(internalName, memberName, explicitName string) fakeDefinition {
	return fakeDefinition{
		internalName: internalName,
		explicitName: explicitName,
		member:       &Member{Name: memberName, Kind: AccessorField},
	}
}

func TestProvider_Resolve_Definitions(t *testing.T) {
	typ := reflect.TypeFor[twoFields]()

	t.Run("last definition wins at the first position", func(t *testing.T) {
		provider := newTestProvider(t, WithIntrospector(fakeIntrospector{definitions: []Definition{
			fieldDefinition("a", "A", "first"),
			fieldDefinition("b", "B", ""),
			fieldDefinition("a", "A", "second"),
		}}))
		props, err := provider.PropertiesForSerialization(typ)
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "b"}, propertyNames(props))
	})

	t.Run("definitions without accessor are dropped", func(t *testing.T) {
		provider := newTestProvider(t, WithIntrospector(fakeIntrospector{definitions: []Definition{
			fieldDefinition("a", "Missing", ""),
			// The member name matches, but the internal name does not.
			fieldDefinition("x", "A", ""),
			fakeDefinition{internalName: "c"},
			nil,
			fieldDefinition("b", "B", ""),
		}}))
		for _, dir := range []Direction{Serialization, Deserialization} {
			res, err := provider.Resolve(typ, dir)
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, propertyNames(res.Properties))
			assert.Empty(t, res.Skipped)
		}
	})

	t.Run("introspection failure", func(t *testing.T) {
		provider := newTestProvider(t, WithIntrospector(fakeIntrospector{err: errors.New("no metadata")}))
		for _, dir := range []Direction{Serialization, Deserialization} {
			_, err := provider.Resolve(typ, dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "no metadata")
		}
	})

	t.Run("empty external name", func(t *testing.T) {
		provider := newTestProvider(t,
			WithIntrospector(fakeIntrospector{definitions: []Definition{
				fieldDefinition("a", "A", ""),
				fieldDefinition("b", "B", ""),
			}}),
			WithNamingStrategy(fakeNaming{names: map[string]string{"b": ""}}),
		)
		_, err := provider.PropertiesForSerialization(typ)
		assert.ErrorIs(t, err, ErrEmptyName)

		res, err := provider.Resolve(typ, Deserialization)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, propertyNames(res.Properties))
		require.Len(t, res.Skipped, 1)
		assert.ErrorIs(t, res.Skipped[0].Reason, ErrEmptyName)
	})

	t.Run("panics are isolated during deserialization", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		provider := newTestProvider(t,
			WithLogger(zap.New(core)),
			WithIntrospector(fakeIntrospector{definitions: []Definition{
				fieldDefinition("a", "A", ""),
				fieldDefinition("b", "B", ""),
			}}),
			WithNamingStrategy(fakeNaming{panicOn: "a"}),
		)
		res, err := provider.Resolve(typ, Deserialization)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, propertyNames(res.Properties))
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, "a", res.Skipped[0].Property)
		assert.Contains(t, res.Skipped[0].Reason.Error(), "boom")
		assert.Equal(t, 1, logs.FilterMessage("skipping property").Len())
	})
}

func TestProvider_Profile(t *testing.T) {
	t.Run("naming policy", func(t *testing.T) {
		p := DefaultProfile()
		p.Naming = NamingSnakeCase
		provider := newTestProvider(t, WithProfile(p))

		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Equal(t, []string{"address", "created_at", "id", "name", "active"}, propertyNames(props))
	})

	t.Run("member overrides", func(t *testing.T) {
		p := DefaultProfile()
		p.Configure(reflect.TypeFor[testmodels.Address](), "street", MemberConfig{Name: "line1"})
		p.Configure(reflect.TypeFor[testmodels.Address](), "city", MemberConfig{Ignore: true})
		p.Configure(reflect.TypeFor[testmodels.Customer](), "address", MemberConfig{Unwrap: true})
		p.Configure(reflect.TypeFor[testmodels.Customer](), "id", MemberConfig{Access: AccessWriteOnly})
		provider := newTestProvider(t, WithProfile(p))

		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Equal(t, []string{"line1", "CreatedAt", "Name", "Active"}, propertyNames(props))

		props, err = provider.PropertiesForDeserialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Equal(t, []string{"line1", "ID", "Name", "Password"}, propertyNames(props))
	})

	t.Run("invalid profile", func(t *testing.T) {
		p := DefaultProfile()
		p.TagKey = ""
		_, err := NewProvider(WithProfile(p))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid marshaling profile")
	})

	t.Run("set profile", func(t *testing.T) {
		provider := newTestProvider(t)
		p := DefaultProfile()
		p.Naming = NamingLowerCase
		require.NoError(t, provider.SetProfile(p))

		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Equal(t, []string{"address", "createdat", "id", "name", "active"}, propertyNames(props))
	})

	t.Run("watch profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.yaml")
		require.NoError(t, os.WriteFile(path, []byte("naming: kebab-case\n"), 0o600))
		provider := newTestProvider(t)
		stop, err := provider.WatchProfile(path)
		require.NoError(t, err)
		t.Cleanup(func() { assert.NoError(t, stop()) })

		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		require.NoError(t, err)
		assert.Contains(t, propertyNames(props), "created-at")

		require.NoError(t, os.WriteFile(path, []byte("naming: snake\n"), 0o600))
		assert.Eventually(t, func() bool {
			props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
			return err == nil && slices.Contains(propertyNames(props), "created_at")
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("watch invalid profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.yaml")
		require.NoError(t, os.WriteFile(path, []byte("naming: screaming\n"), 0o600))
		provider := newTestProvider(t)
		stop, err := provider.WatchProfile(path)
		require.Error(t, err)
		assert.Nil(t, stop)
	})

	t.Run("load profile", func(t *testing.T) {
		_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestProvider_ConcurrentResolution(t *testing.T) {
	provider := newTestProvider(t)
	expected, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]ModelProperty, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
		}()
	}
	wg.Wait()
	for _, result := range results {
		assert.Equal(t, expected, result)
	}
}

// blockingNaming holds the first resolution inside the naming strategy until release is closed.
type blockingNaming struct {
	entered    chan struct{}
	release    chan struct{}
	once       sync.Once
	configured atomic.Int32
}

func (b *blockingNaming) Configure(Profile) error {
	b.configured.Add(1)
	return nil
}

func (b *blockingNaming) Name(def Definition, _ Direction) string {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return def.GoName()
}

func TestProvider_SetProfile_WaitsForResolutions(t *testing.T) {
	naming := &blockingNaming{entered: make(chan struct{}), release: make(chan struct{})}
	provider := newTestProvider(t, WithNamingStrategy(naming))
	require.Equal(t, int32(1), naming.configured.Load())

	resolved := make(chan error, 1)
	go func() {
		_, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Address]())
		resolved <- err
	}()
	<-naming.entered

	installed := make(chan error, 1)
	go func() { installed <- provider.SetProfile(DefaultProfile()) }()

	assert.Never(t, func() bool { return naming.configured.Load() > 1 }, 200*time.Millisecond, 10*time.Millisecond)
	close(naming.release)

	require.NoError(t, <-resolved)
	require.NoError(t, <-installed)
	assert.Equal(t, int32(2), naming.configured.Load())
}

// recordingIntrospector records the profiles it was configured with.
type recordingIntrospector struct {
	fakeIntrospector
	profiles []Profile
}

func (r *recordingIntrospector) Configure(p Profile) error {
	r.profiles = append(r.profiles, p)
	return nil
}

// rejectingNaming rejects every profile with the given naming policy.
type rejectingNaming struct {
	fakeNaming
	rejected NamingPolicy
}

func (r rejectingNaming) Configure(p Profile) error {
	if p.Naming == r.rejected {
		return errors.New("unsupported naming policy")
	}
	return nil
}

func TestProvider_SetProfile_RestoresIntrospector(t *testing.T) {
	introspector := &recordingIntrospector{}
	provider := newTestProvider(t,
		WithIntrospector(introspector),
		WithNamingStrategy(rejectingNaming{rejected: NamingKebabCase}))

	rejected := DefaultProfile()
	rejected.Naming = NamingKebabCase
	err := provider.SetProfile(rejected)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to configure naming strategy")

	require.Len(t, introspector.profiles, 3)
	assert.Equal(t, NamingKebabCase, introspector.profiles[1].Naming)
	assert.Equal(t, DefaultProfile(), introspector.profiles[2])
}

func TestProvider_WithAlternateType(t *testing.T) {
	provider := newTestProvider(t, WithAlternateType(reflect.TypeFor[time.Time](), reflect.TypeFor[string]()))

	props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Customer]())
	require.NoError(t, err)
	idx := slices.IndexFunc(props, func(p ModelProperty) bool { return p.Name == "CreatedAt" })
	require.NotEqual(t, -1, idx, spew.Sdump(propertyNames(props)))

	createdAt := props[idx]
	assert.Equal(t, reflect.TypeFor[string](), createdAt.Type)
	assert.Equal(t, "string", createdAt.TypeInfo.Name)
	assert.Equal(t, reflect.TypeFor[time.Time](), createdAt.Accessor.Type)

	t.Run("describe does not descend into the original type", func(t *testing.T) {
		doc, err := provider.Describe(reflect.TypeFor[testmodels.Customer](), Serialization)
		require.NoError(t, err)
		for _, property := range doc.Properties {
			assert.NotContains(t, property.Path, "$.CreatedAt.")
		}
	})

	t.Run("pointers are substituted", func(t *testing.T) {
		provider := newTestProvider(t, WithAlternateType(reflect.TypeFor[testmodels.Customer](), reflect.TypeFor[string]()))
		props, err := provider.PropertiesForSerialization(reflect.TypeFor[testmodels.Order]())
		require.NoError(t, err)
		idx := slices.IndexFunc(props, func(p ModelProperty) bool { return p.Name == "customer" })
		require.NotEqual(t, -1, idx, spew.Sdump(propertyNames(props)))
		assert.Equal(t, reflect.TypeFor[string](), props[idx].Type)
		assert.Equal(t, reflect.TypeFor[*testmodels.Customer](), props[idx].Accessor.Type)
	})
}

func newTestProvider(t *testing.T, opts ...Option) *Provider {
	t.Helper()
	provider, err := NewProvider(opts...)
	require.NoError(t, err)
	return provider
}

func propertyNames(props []ModelProperty) []string {
	names := make([]string, 0, len(props))
	for _, prop := range props {
		names = append(names, prop.Name)
	}
	return names
}
