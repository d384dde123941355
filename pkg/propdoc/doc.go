// Package propdoc resolves the externally visible properties of Go types
// for the purpose of documenting API models.
//
// A property is what a marshaler sees: a struct field, a getter (GetX, IsX)
// or a setter (SetX), grouped under one internal name and exposed under
// an external name chosen by the naming strategy.
// Which members count, and how they are named, is decided by the active [Profile].
//
// # Basic Usage
//
// Given a model:
//
//	type Address struct {
//	    Street string   `json:"street"`
//	    City   CityInfo `json:",inline"`
//	}
//
//	type CityInfo struct {
//	    Name string `json:"name"`
//	    Zip  string `json:"zip"`
//	}
//
// Resolve its properties:
//
//	provider, err := propdoc.NewProvider()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := provider.PropertiesForSerialization(reflect.TypeFor[Address]())
//
// The result contains "street", "name" and "zip", the inlined CityInfo
// properties are spliced in place of the City field.
//
// # Directions
//
// Serialization prefers getters over fields, deserialization prefers setters.
// A property only readable through a getter is absent from the deserialization view and vice versa.
// Serialization faults, such as a cyclic inline chain, are returned as errors.
// Deserialization faults only drop the offending property,
// which is then reported in [Resolution.Skipped] and logged as a warning.
//
// # Profiles
//
// The [Profile] controls the struct tag key, the naming policy and per-property overrides:
//
//	p := propdoc.DefaultProfile()
//	p.Naming = propdoc.NamingSnakeCase
//	p.Configure(reflect.TypeFor[Address](), "street", propdoc.MemberConfig{Name: "line1"})
//	provider, err := propdoc.NewProvider(propdoc.WithProfile(p))
//
// Profiles can also be loaded from YAML, JSON or TOML files with [LoadProfile]
// and hot-reloaded with [Provider.WatchProfile].
//
// # Documentation
//
// [Provider.Describe] walks the whole model, including nested structs, collections and maps,
// and produces a flat list of [PropertyDoc] addressed by JSONPath (e.g. "$.address.street").
// Godoc comments of the backing fields and methods are merged in with [WithGoDoc],
// and govy validation plans are attached with [DescribeValidated]:
//
//	doc, err := propdoc.DescribeValidated(provider, addressValidator, propdoc.Serialization,
//	    propdoc.WithFilteredPaths("$.zip"),
//	)
package propdoc
