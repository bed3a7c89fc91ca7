// Package env has helpers to build the environment of the device tool processes.
package env

import (
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/slok/devsbx/internal/model"
)

var keyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSpecs parses `KEY=VALUE` specs. A bare `KEY` takes its value from the
// current environment. Later specs override earlier ones.
func ParseSpecs(specs []string) (map[string]string, error) {
	return parseSpecs(specs, os.LookupEnv)
}

func parseSpecs(specs []string, lookupEnv func(string) (string, bool)) (map[string]string, error) {
	env := make(map[string]string, len(specs))
	for _, spec := range specs {
		key, value, hasValue := strings.Cut(spec, "=")
		if !keyRegexp.MatchString(key) {
			return nil, fmt.Errorf("invalid environment variable spec %q: %w", spec, model.ErrNotValid)
		}

		if !hasValue {
			v, ok := lookupEnv(key)
			if !ok {
				return nil, fmt.Errorf("environment variable %q is not set: %w", key, model.ErrNotFound)
			}
			value = v
		}

		env[key] = value
	}

	return env, nil
}

// MergeMaps returns a new map with base values overridden by override values.
func MergeMaps(base map[string]string, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	maps.Copy(merged, base)
	maps.Copy(merged, override)
	return merged
}

// FromList converts a KEY=VALUE list (like os.Environ) into a map. Entries
// without a separator are ignored.
func FromList(list []string) map[string]string {
	m := make(map[string]string, len(list))
	for _, kv := range list {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// ToList converts a map into a KEY=VALUE list sorted by key.
func ToList(m map[string]string) []string {
	list := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		list = append(list, k+"="+m[k])
	}
	return list
}

// Remove deletes the keys from the map.
func Remove(m map[string]string, keys ...string) {
	for _, k := range keys {
		delete(m, k)
	}
}
