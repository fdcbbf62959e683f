package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownKey is returned for a dotted key that names no setting.
var ErrUnknownKey = errors.New("unknown config key")

// secretKeys are masked by callers that print every setting.
var secretKeys = map[string]bool{
	"llm.api_key": true,
	"api.token":   true,
}

// IsSecret reports whether key holds a credential.
func IsSecret(key string) bool {
	return secretKeys[key]
}

// Keys lists every settable dotted key ("section.field") in file order.
func Keys() []string {
	var keys []string
	walkFields(reflect.ValueOf(Default()), func(key string, _ reflect.Value) {
		keys = append(keys, key)
	})
	return keys
}

// Lookup formats the value of key in c.
func (c *Config) Lookup(key string) (string, error) {
	var (
		out   string
		found bool
	)
	walkFields(reflect.ValueOf(*c), func(name string, field reflect.Value) {
		if name != key {
			return
		}
		found = true
		out = formatField(field)
	})
	if !found {
		return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	return out, nil
}

// SetValue writes one setting into the TOML file at path, creating the file
// when it does not exist. value is parsed according to the setting's type
// (lists are comma separated). The edited file must load and validate
// before it replaces the original, and keys not being edited are kept as
// written.
func SetValue(path, key, value string) error {
	section, field, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok {
		return fmt.Errorf("%w %q (use section.field, e.g. llm.model)", ErrUnknownKey, key)
	}
	kind, known := fieldKinds()[section+"."+field]
	if !known {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	parsed, err := parseValue(kind, value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	doc := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("read config: %w", err)
	}

	table, _ := doc[section].(map[string]any)
	if table == nil {
		table = map[string]any{}
	}
	table[field] = parsed
	doc[section] = table

	encoded, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	cfg := Default()
	if err := toml.Unmarshal(encoded, &cfg); err != nil {
		return fmt.Errorf("parse edited config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return writeFileAtomic(path, encoded)
}

func fieldKinds() map[string]reflect.Type {
	kinds := make(map[string]reflect.Type)
	walkFields(reflect.ValueOf(Default()), func(key string, field reflect.Value) {
		kinds[key] = field.Type()
	})
	return kinds
}

// walkFields visits every tagged field of every tagged section of a Config value.
func walkFields(cfg reflect.Value, visit func(key string, field reflect.Value)) {
	cfgType := cfg.Type()
	for i := 0; i < cfgType.NumField(); i++ {
		sectionTag := tomlName(cfgType.Field(i))
		if sectionTag == "" || cfg.Field(i).Kind() != reflect.Struct {
			continue
		}
		section := cfg.Field(i)
		sectionType := section.Type()
		for j := 0; j < sectionType.NumField(); j++ {
			name := tomlName(sectionType.Field(j))
			if name == "" {
				continue
			}
			visit(sectionTag+"."+name, section.Field(j))
		}
	}
}

func tomlName(field reflect.StructField) string {
	if !field.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(field.Tag.Get("toml"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func parseValue(typ reflect.Type, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch typ.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", raw)
		}
		return int64(n), nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return b, nil
	case reflect.Slice:
		items := []any{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unsupported setting type %s", typ)
	}
}

func formatField(field reflect.Value) string {
	switch field.Kind() {
	case reflect.Slice:
		parts := make([]string, field.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(field.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(field.Interface())
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
