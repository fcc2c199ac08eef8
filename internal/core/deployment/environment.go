package deployment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// =============================================================================
// Environment Types
// =============================================================================

// EnvVar is one environment entry.
type EnvVar struct {
	Key   string
	Value string
}

// String renders the entry as KEY=value.
func (e EnvVar) String() string {
	return e.Key + "=" + e.Value
}

// Environment is an ordered set of environment entries with unique keys.
type Environment []EnvVar

// NewEnvironment builds an Environment from a map, ordered by key.
func NewEnvironment(vars map[string]string) Environment {
	env := make(Environment, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, EnvVar{Key: k, Value: vars[k]})
	}
	return env
}

// Strings flattens the environment to KEY=value strings in order.
func (e Environment) Strings() []string {
	out := make([]string, 0, len(e))
	for _, v := range e {
		out = append(out, v.String())
	}
	return out
}

// Get returns the value for key and whether it was present.
func (e Environment) Get(key string) (string, bool) {
	for _, v := range e {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// Map returns the environment as a map.
func (e Environment) Map() map[string]string {
	m := make(map[string]string, len(e))
	for _, v := range e {
		m[v.Key] = v.Value
	}
	return m
}

// =============================================================================
// Environment Parsing
// =============================================================================

// ParseEnvironment decodes a stored environment blob.
//
// The blob must be a JSON object. Entries are ordered by key. String values
// are used verbatim, numbers and booleans keep their JSON text, null becomes
// the empty string. Nested arrays and objects are rejected.
//
// Example:
//
//	ParseEnvironment([]byte(`{"DEBUG": false, "SECRET_KEY": "s3cret"}`))
//	// Returns: [{DEBUG false} {SECRET_KEY s3cret}]
func ParseEnvironment(raw []byte) (Environment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: non object value passed as environment", ErrConfiguration)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	env := make(Environment, 0, len(fields))
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		if err := validateKey(key); err != nil {
			return nil, err
		}
		value, err := scalarText(fields[key])
		if err != nil {
			return nil, fmt.Errorf("%w: variable %q: %v", ErrConfiguration, key, err)
		}
		env = append(env, EnvVar{Key: key, Value: value})
	}
	return env, nil
}

// EncodeEnvironment renders an environment as the JSON object ParseEnvironment reads.
func EncodeEnvironment(env Environment) ([]byte, error) {
	return json.Marshal(env.Map())
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty variable name", ErrConfiguration)
	}
	if strings.ContainsAny(key, "= \t\r\n") {
		return fmt.Errorf("%w: variable name %q contains '=' or whitespace", ErrConfiguration, key)
	}
	return nil
}

func scalarText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("nested values are not supported")
	case 'n':
		return "", nil
	default:
		return string(raw), nil
	}
}
