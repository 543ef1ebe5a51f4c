package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

const (
	// AppName names the config directory and the syslog tag.
	AppName = "piow"

	// FileName is the TOML config file inside the config directory.
	FileName = "config.toml"

	// NumberPlaceholder is replaced by the workspace number in NameFormat.
	NumberPlaceholder = "%n"

	// IconPlaceholder is replaced by the joined icon string in NameFormat.
	IconPlaceholder = "%i"

	// LegacyNameFormat is the fixed layout used when a config sets neither
	// name_format nor format_str.
	LegacyNameFormat = NumberPlaceholder + ": " + IconPlaceholder
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrEmptyKey     = errors.New("empty icon key")
)

//go:embed default.toml
var defaultTOML []byte

// DefaultTOML returns the built-in configuration file contents.
func DefaultTOML() []byte {
	out := make([]byte, len(defaultTOML))
	copy(out, defaultTOML)
	return out
}

// Mapping is one [icons] entry: windows whose identifier contains Match get Icon.
type Mapping struct {
	Match string
	Icon  string
}

// IconConfig is the loaded icon configuration. It is never mutated after
// construction and may be shared freely between goroutines.
type IconConfig struct {
	defaultIcon string
	separator   string
	nameFormat  string
	icons       []Mapping
	source      string
}

// New builds an IconConfig. Match keys are lower-cased; their order is kept.
func New(defaultIcon, separator, nameFormat string, icons []Mapping) (*IconConfig, error) {
	mappings := make([]Mapping, 0, len(icons))
	for _, m := range icons {
		if m.Match == "" {
			return nil, fmt.Errorf("icons: %w", ErrEmptyKey)
		}
		mappings = append(mappings, Mapping{Match: strings.ToLower(m.Match), Icon: m.Icon})
	}
	if nameFormat == "" {
		nameFormat = LegacyNameFormat
	}
	return &IconConfig{
		defaultIcon: defaultIcon,
		separator:   separator,
		nameFormat:  nameFormat,
		icons:       mappings,
	}, nil
}

// DefaultIcon is used for identifiers without a matching key.
func (c *IconConfig) DefaultIcon() string { return c.defaultIcon }

// Separator joins the icons of one workspace.
func (c *IconConfig) Separator() string { return c.separator }

// NameFormat is the workspace name template containing %n and %i.
func (c *IconConfig) NameFormat() string { return c.nameFormat }

// Source is the file the config was read from, or "built-in".
func (c *IconConfig) Source() string { return c.source }

// Mappings returns a copy of the icon mappings in match order.
func (c *IconConfig) Mappings() []Mapping {
	out := make([]Mapping, len(c.icons))
	copy(out, c.icons)
	return out
}

// Keys returns the match keys in match order.
func (c *IconConfig) Keys() []string {
	keys := make([]string, len(c.icons))
	for i, m := range c.icons {
		keys[i] = m.Match
	}
	return keys
}

// Lookup returns the icon of the first key contained in the lower-cased
// identifier. ok is false when no key matches.
func (c *IconConfig) Lookup(identifier string) (icon string, ok bool) {
	id := strings.ToLower(identifier)
	for _, m := range c.icons {
		if strings.Contains(id, m.Match) {
			return m.Icon, true
		}
	}
	return "", false
}

// fileConfig mirrors the TOML layout. Icons is decoded as a plain map; the
// key order comes from toml.MetaData.
type fileConfig struct {
	DefaultIcon   string            `toml:"default_icon"`
	IconSeparator string            `toml:"icon_separator"`
	NameFormat    string            `toml:"name_format"`
	FormatStr     string            `toml:"format_str"`
	Icons         map[string]string `toml:"icons"`
}

// Parse decodes TOML config data. source is only used in error messages and
// reported by IconConfig.Source.
func Parse(data []byte, source string) (*IconConfig, error) {
	var fc fileConfig
	md, err := toml.Decode(string(data), &fc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}

	for _, field := range []string{"default_icon", "icon_separator", "icons"} {
		if !md.IsDefined(field) {
			return nil, fmt.Errorf("parse %s: %w %q", source, ErrMissingField, field)
		}
	}

	nameFormat := fc.NameFormat
	if !md.IsDefined("name_format") && md.IsDefined("format_str") {
		nameFormat = fc.FormatStr
	}

	// Keys() reports keys in file order, which is the match order.
	var mappings []Mapping
	for _, key := range md.Keys() {
		if len(key) != 2 || key[0] != "icons" {
			continue
		}
		mappings = append(mappings, Mapping{Match: key[1], Icon: fc.Icons[key[1]]})
	}

	cfg, err := New(fc.DefaultIcon, fc.IconSeparator, nameFormat, mappings)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	cfg.source = source
	return cfg, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*IconConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

var builtin = sync.OnceValue(func() *IconConfig {
	cfg, err := Parse(defaultTOML, "built-in")
	if err != nil {
		panic(fmt.Sprintf("built-in config: %v", err))
	}
	return cfg
})

// Default returns the built-in configuration.
func Default() *IconConfig {
	return builtin()
}

// SearchPaths lists the candidate config files in lookup order.
func SearchPaths() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, xdg)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config"))
	}
	dirs = append(dirs, "/etc/xdg")

	paths := make([]string, 0, len(dirs))
	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		p := filepath.Join(d, AppName, FileName)
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

// Resolve returns explicit when set, otherwise the first existing file from
// SearchPaths. The error wraps os.ErrNotExist when nothing is found.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	paths := SearchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file in %s: %w", strings.Join(paths, ", "), os.ErrNotExist)
}

// UserPath is where example-config --write installs the default file.
func UserPath() (string, error) {
	paths := SearchPaths()
	if len(paths) == 0 {
		return "", errors.New("no config directory")
	}
	return paths[0], nil
}

// WriteDefault installs the built-in config at path. An existing file is
// left alone and reported with os.ErrExist.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, os.ErrExist)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write to a temp file, fsync, then rename over the final path.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, defaultTOML, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	// Best effort: the rename below is still atomic without it.
	_ = syncFile(tmpPath)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config: %w", err)
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
