package profile

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Load reads the profile from a YAML, JSON or TOML file.
// Keys missing from the file fall back to [Default] values.
// The resulting profile is validated before it is returned.
func Load(path string) (Profile, error) {
	v, err := newViper(path)
	if err != nil {
		return Profile{}, err
	}
	if err = v.ReadInConfig(); err != nil {
		return Profile{}, errors.Wrapf(err, "failed to read profile %s", path)
	}
	return decode(v)
}

// Watch loads the profile and passes it to install before it starts watching the file.
// Every later revision of the file is loaded and passed to install as well,
// revisions which fail to load, validate or install are reported through onError and skipped.
// Errors of the initial load and install are returned instead.
// The returned stop function ends the watch and waits for pending revisions to be handled.
func Watch(path string, install func(Profile) error, onError func(error)) (stop func() error, err error) {
	file, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve profile path %s", path)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create profile watcher")
	}
	// Editors often replace the file instead of writing to it, watch its directory.
	if err = watcher.Add(filepath.Dir(file)); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "failed to watch profile %s", path)
	}
	initial, err := Load(file)
	if err != nil {
		_ = watcher.Close()
		return nil, err
	}
	if err = install(initial); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "failed to install profile %s", path)
	}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != file ||
					!(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
					continue
				}
				p, err := Load(file)
				if err != nil {
					report(errors.Wrapf(err, "failed to reload profile %s", path))
					continue
				}
				if err = install(p); err != nil {
					report(errors.Wrapf(err, "failed to install reloaded profile %s", path))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				report(errors.Wrapf(err, "profile watcher failed for %s", path))
			}
		}
	}()

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			err = watcher.Close()
			<-done
		})
		return err
	}, nil
}

func newViper(path string) (*viper.Viper, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "failed to stat profile %s", path)
	}
	v := viper.New()
	v.SetConfigFile(path)
	def := Default()
	v.SetDefault("tagKey", def.TagKey)
	v.SetDefault("naming", string(def.Naming))
	v.SetDefault("unwrapEmbedded", def.UnwrapEmbedded)
	return v, nil
}

// fileProfile is the on-disk form of [Profile].
// Viper folds map keys to lower case and splits them on dots,
// so type and property names are carried in values instead of keys.
type fileProfile struct {
	TagKey         string         `mapstructure:"tagKey"`
	Naming         NamingPolicy   `mapstructure:"naming"`
	UnwrapEmbedded bool           `mapstructure:"unwrapEmbedded"`
	Types          []fileTypeSpec `mapstructure:"types"`
}

type fileTypeSpec struct {
	Type    string           `mapstructure:"type"`
	Members []fileMemberSpec `mapstructure:"members"`
}

type fileMemberSpec struct {
	Property     string `mapstructure:"property"`
	MemberConfig `mapstructure:",squash"`
}

func decode(v *viper.Viper) (Profile, error) {
	var fp fileProfile
	err := v.Unmarshal(&fp, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return Profile{}, errors.Wrap(err, "failed to decode profile")
	}
	p := Profile{
		TagKey:         fp.TagKey,
		Naming:         fp.Naming,
		UnwrapEmbedded: fp.UnwrapEmbedded,
	}
	for _, spec := range fp.Types {
		if len(spec.Members) == 0 {
			continue
		}
		if p.Types == nil {
			p.Types = make(map[string]TypeConfig, len(fp.Types))
		}
		if p.Types[spec.Type] == nil {
			p.Types[spec.Type] = make(TypeConfig, len(spec.Members))
		}
		for _, member := range spec.Members {
			if member.Property == "" {
				return Profile{}, errors.Errorf("profile override for %s is missing the property name", spec.Type)
			}
			p.Types[spec.Type][member.Property] = member.MemberConfig
		}
	}
	if err = p.Validate(); err != nil {
		return Profile{}, errors.Wrap(err, "invalid profile")
	}
	return p, nil
}
