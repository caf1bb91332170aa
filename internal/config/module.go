package config

import (
	"os"

	"github.com/pelletier/go-toml"
)

// ModuleTable holds every module's option set as parsed from TOML, keyed by
// module name; each value is that module's section, keyed by option name.
type ModuleTable map[string]*toml.Tree

// LoadModuleTables parses the TOML file at path into one Tree per
// top-level table (module name -> option table). A missing path, or any
// parse error, yields an empty table: module defaults apply and the
// failure is the caller's responsibility to log, never fatal.
func LoadModuleTables(path string) (ModuleTable, error) {
	tables := make(ModuleTable)
	if path == "" {
		return tables, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return tables, err
	}

	root, err := toml.LoadBytes(data)
	if err != nil {
		return tables, err
	}

	for _, name := range root.Keys() {
		if sub, ok := root.Get(name).(*toml.Tree); ok {
			tables[name] = sub
		}
	}
	return tables, nil
}

// Int overlays the module table's int at key onto fallback if present.
func (t ModuleTable) Int(module, key string, fallback int) int {
	sub, ok := t[module]
	if !ok {
		return fallback
	}
	if v, ok := sub.Get(key).(int64); ok {
		return int(v)
	}
	return fallback
}

// String overlays the module table's string at key onto fallback if present.
func (t ModuleTable) String(module, key, fallback string) string {
	sub, ok := t[module]
	if !ok {
		return fallback
	}
	if v, ok := sub.Get(key).(string); ok {
		return v
	}
	return fallback
}

// Bool overlays the module table's bool at key onto fallback if present.
func (t ModuleTable) Bool(module, key string, fallback bool) bool {
	sub, ok := t[module]
	if !ok {
		return fallback
	}
	if v, ok := sub.Get(key).(bool); ok {
		return v
	}
	return fallback
}

// StringSlice overlays the module table's string array at key onto
// fallback if present.
func (t ModuleTable) StringSlice(module, key string, fallback []string) []string {
	sub, ok := t[module]
	if !ok {
		return fallback
	}
	raw, ok := sub.Get(key).([]interface{})
	if !ok {
		return fallback
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Enabled reports whether module is toggled on via its "enabled" key,
// defaulting to defaultEnabled when the module table or key is absent.
func (t ModuleTable) Enabled(module string, defaultEnabled bool) bool {
	return t.Bool(module, "enabled", defaultEnabled)
}
