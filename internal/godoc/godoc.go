package godoc

import (
	"go/ast"
	"go/doc/comment"
	"go/types"
	"maps"
	"reflect"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ast/astutil"
	"golang.org/x/tools/go/packages"
)

type Docs map[string]Doc

func (d Docs) add(doc Doc) {
	d[doc.Key()] = doc
}

// Doc holds the documentation of a type or one of its members.
type Doc struct {
	Name    string
	Package string
	Doc     string
	// StructFields are keyed by the Go field name.
	StructFields Docs
	// Methods are keyed by the method name.
	Methods Docs
}

func (d Doc) Key() string {
	if d.Package == "" {
		return d.Name
	}
	return d.Package + "." + d.Name
}

// Key returns the [Doc.Key] of the given type.
func Key(goType reflect.Type) string {
	for goType.Kind() == reflect.Pointer {
		goType = goType.Elem()
	}
	return Doc{Name: goType.Name(), Package: goType.PkgPath()}.Key()
}

type parserOptions struct {
	dir string
}

type ParserOption func(options parserOptions) parserOptions

// WithModuleDir loads the module containing dir instead of the one containing the working directory.
func WithModuleDir(dir string) ParserOption {
	return func(options parserOptions) parserOptions {
		options.dir = dir
		return options
	}
}

// NewParser loads every package of the module, along with their dependencies.
func NewParser(opts ...ParserOption) (*Parser, error) {
	options := parserOptions{dir: "."}
	for _, opt := range opts {
		options = opt(options)
	}
	mod, err := findModule(options.dir)
	if err != nil {
		return nil, err
	}
	// Load complete type information for the specified packages,
	// along with type-annotated syntax.
	conf := &packages.Config{
		Dir: mod.Dir,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedDeps |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(conf, mod.Path+"/...")
	if err != nil {
		return nil, errors.Wrap(err, "failed to load packages")
	}
	if err = checkForPackageErrors(pkgs); err != nil {
		return nil, err
	}

	parser := &Parser{
		module: mod,
		pkgs:   make(map[string]*goPackage, len(pkgs)),
	}
	parser.collectAllPackages(pkgs)
	return parser, nil
}

type Parser struct {
	module module
	pkgs   map[string]*goPackage
}

// ModulePath returns the path of the loaded module.
func (p *Parser) ModulePath() string { return p.module.Path }

type goPackage struct {
	pkg           *packages.Package
	commentParser *comment.Parser
}

func (p *Parser) Parse(goType reflect.Type) (Docs, error) {
	m := make(Docs)
	if _, err := p.parse(goType, m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, errors.Errorf("no documentation found for type %s", goType)
	}
	return m, nil
}

func (p *Parser) parse(goType reflect.Type, docs Docs) (*Doc, error) {
	switch goType.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return p.parse(goType.Elem(), docs)
	case reflect.Map:
		if goType.Name() == "" {
			return p.parse(goType.Elem(), docs)
		}
	}

	name := goType.Name()
	pkgPath := goType.PkgPath()
	typeDoc := Doc{
		Name:    name,
		Package: pkgPath,
	}
	if pkgPath == "" {
		// Builtin type, no need to parse.
		return &typeDoc, nil
	}
	// Recursive types are only parsed once.
	if parsed, ok := docs[typeDoc.Key()]; ok {
		return &parsed, nil
	}

	// Find the package and package-level object.
	pkg := p.getPackageByPath(pkgPath)
	if pkg == nil {
		return nil, errors.Errorf("could not find %s package for type %s", pkgPath, name)
	}
	if pkg.commentParser == nil {
		pkg.commentParser = p.newCommentParserForPackage(pkg.pkg)
	}

	decl, err := p.findTypeDeclaration(pkg, name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find %s declaration in %s pkg", name, pkgPath)
	}
	typeDoc.Doc = p.docCommentToMarkdown(pkg.commentParser, pkg.pkg.PkgPath, decl.Doc.Text())
	typeDoc.Methods = p.parseMethods(pkg, name)

	// We're done for anything other than a struct.
	if goType.Kind() != reflect.Struct {
		docs.add(typeDoc)
		return &typeDoc, nil
	}

	structType, ok := findTypeSpec(decl, name).Type.(*ast.StructType)
	if !ok {
		return nil, errors.Errorf("failed to parse %s struct type, expected ast.StructType", name)
	}
	typeDoc.StructFields = make(Docs, goType.NumField())
	// Register the type before descending into its fields.
	docs.add(typeDoc)
	// A single ast.Field may declare multiple struct fields, e.g. "A, B int".
	fieldIndex := 0
	for _, astField := range structType.Fields.List {
		count := max(len(astField.Names), 1)
		for range count {
			goTypeField := goType.Field(fieldIndex)
			fieldIndex++
			if !goTypeField.IsExported() {
				continue
			}
			fieldDoc, err := p.parse(goTypeField.Type, docs)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse %s struct field %s", name, goTypeField.Name)
			}
			fieldDoc.Doc = p.docCommentToMarkdown(pkg.commentParser, pkg.pkg.PkgPath, astField.Doc.Text())
			typeDoc.StructFields[goTypeField.Name] = *fieldDoc
		}
	}
	docs.add(typeDoc)
	return &typeDoc, nil
}

// findTypeDeclaration finds the ast.GenDecl for the given type declaration, specified by name.
func (p *Parser) findTypeDeclaration(pkg *goPackage, name string) (*ast.GenDecl, error) {
	obj := pkg.pkg.Types.Scope().Lookup(name)
	if obj == nil {
		return nil, errors.Errorf("%s.%s not found", pkg.pkg.Types.Path(), name)
	}
	for _, file := range pkg.pkg.Syntax {
		pos := obj.Pos()
		if file.FileStart > pos || pos >= file.FileEnd {
			continue // not in this file
		}
		path, _ := astutil.PathEnclosingInterval(file, pos, pos)
		for _, n := range path {
			if n, ok := n.(*ast.GenDecl); ok {
				return n, nil
			}
		}
	}
	return nil, errors.Errorf("could not find %s.%s declaration", pkg.pkg.Name, name)
}

// findTypeSpec returns the spec declaring name, grouped declarations have more than one.
func findTypeSpec(decl *ast.GenDecl, name string) *ast.TypeSpec {
	for _, spec := range decl.Specs {
		if ts, ok := spec.(*ast.TypeSpec); ok && ts.Name.Name == name {
			return ts
		}
	}
	return decl.Specs[0].(*ast.TypeSpec)
}

// parseMethods collects the documentation of methods declared with the named receiver type.
func (p *Parser) parseMethods(pkg *goPackage, typeName string) Docs {
	methods := make(Docs)
	for _, file := range pkg.pkg.Syntax {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 {
				continue
			}
			if receiverTypeName(fn.Recv.List[0].Type) != typeName {
				continue
			}
			methods[fn.Name.Name] = Doc{
				Name: fn.Name.Name,
				Doc:  p.docCommentToMarkdown(pkg.commentParser, pkg.pkg.PkgPath, fn.Doc.Text()),
			}
		}
	}
	return methods
}

func receiverTypeName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(e.X)
	case *ast.IndexExpr:
		return receiverTypeName(e.X)
	case *ast.IndexListExpr:
		return receiverTypeName(e.X)
	case *ast.Ident:
		return e.Name
	default:
		return ""
	}
}

const docLinkBaseURL = "https://pkg.go.dev"

func (p *Parser) docCommentToMarkdown(parser *comment.Parser, pkg, text string) string {
	if text == "" {
		return ""
	}
	typeDoc := parser.Parse(text)
	printer := comment.Printer{
		DocLinkURL: func(link *comment.DocLink) string {
			if link.ImportPath == "" {
				link.ImportPath = pkg
			}
			return link.DefaultURL(docLinkBaseURL)
		},
	}
	return string(printer.Markdown(typeDoc))
}

func (p *Parser) newCommentParserForPackage(currentPackage *packages.Package) *comment.Parser {
	return &comment.Parser{
		LookupPackage: func(name string) (importPath string, ok bool) {
			for _, pkg := range p.pkgs {
				if pkg.pkg.Name == name {
					return pkg.pkg.PkgPath, true
				}
			}
			return "", false
		},
		LookupSym: func(recv, name string) (ok bool) {
			if recv == "" {
				return currentPackage.Types.Scope().Lookup(name) != nil
			}
			obj := currentPackage.Types.Scope().Lookup(recv)
			if obj == nil {
				return false
			}
			// Methods are valid link targets as well as struct fields.
			if named, ok := obj.Type().(*types.Named); ok {
				for method := range named.Methods() {
					if method.Name() == name {
						return true
					}
				}
			}
			switch u := obj.Type().Underlying().(type) {
			case *types.Struct:
				for field := range u.Fields() {
					if field.Name() == name {
						return true
					}
				}
				return false
			default:
				return false
			}
		},
	}
}

func (p *Parser) getPackageByPath(pkgPath string) *goPackage {
	return p.pkgs[pkgPath]
}

// collectAllPackages recursively adds all packages and their imports to the parser's map.
func (p *Parser) collectAllPackages(pkgs []*packages.Package) {
	for _, pkg := range pkgs {
		if _, exists := p.pkgs[pkg.PkgPath]; exists {
			continue
		}
		p.pkgs[pkg.PkgPath] = &goPackage{pkg: pkg}
		if len(pkg.Imports) > 0 {
			p.collectAllPackages(slices.Collect(maps.Values(pkg.Imports)))
		}
	}
}

func checkForPackageErrors(pkgs []*packages.Package) (err error) {
	packages.Visit(pkgs, func(pkg *packages.Package) bool {
		for _, err = range pkg.Errors {
			err = errors.Wrapf(err, "package %s has reported an error", pkg.PkgPath)
			return false
		}
		mod := pkg.Module
		if mod != nil && mod.Error != nil {
			err = errors.New(mod.Error.Err)
			return false
		}
		return true
	}, nil)
	return err
}
