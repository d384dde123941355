package godoc

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/mod/modfile"
)

// module describes the Go module whose packages are loaded by the [Parser].
type module struct {
	// Dir is the absolute directory holding the go.mod file.
	Dir  string
	Path string
}

// findModule walks up from dir to the closest directory with a go.mod file
// and reads the module path declared in it.
func findModule(dir string) (module, error) {
	start, err := filepath.Abs(dir)
	if err != nil {
		return module{}, errors.Wrapf(err, "failed to resolve %s", dir)
	}
	for dir = start; ; {
		goModPath := filepath.Join(dir, "go.mod")
		data, err := os.ReadFile(goModPath)
		switch {
		case err == nil:
			modulePath := modfile.ModulePath(data)
			if modulePath == "" {
				return module{}, errors.Errorf("%s does not declare a module path", goModPath)
			}
			return module{Dir: dir, Path: modulePath}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return module{}, errors.Wrapf(err, "failed to read %s", goModPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return module{}, errors.Errorf("no go.mod found in %s or any of its parents", start)
		}
		dir = parent
	}
}
