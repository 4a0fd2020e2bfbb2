// Package builtins provides the implementation of the builtin values available to
// every template under the "stache" namespace, and the process environment under "env".
package builtins

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.followtheprocess.codes/stache/internal/env"
	"go.followtheprocess.codes/stache/internal/ref"
)

const (
	// Namespace is the top level name under which builtins are bound e.g. {{stache.uuid}}.
	Namespace = "stache"

	// EnvNamespace is the top level name under which environment variables are bound
	// e.g. {{env.HOME}}.
	EnvNamespace = "env"
)

// Builtin is an implementation of a stache builtin.
type Builtin func() (string, error)

// Library is a library of builtins.
type Library interface {
	// Get looks up a builtin from the library by name, returning it (or nil)
	// and a boolean indicating its existence.
	Get(name string) (Builtin, bool)

	// Names returns the names of every builtin in the library, sorted.
	Names() []string
}

// Builtins is a [Library] containing the builtin implementations.
type Builtins struct {
	library map[string]Builtin
}

// NewLibrary returns the stache builtins library, version is the value of the
// 'version' builtin.
func NewLibrary(version string) Builtins {
	library := map[string]Builtin{
		"uuid":      builtinUUID,
		"timestamp": builtinTimestamp,
		"hostname":  builtinHostname,
		"version":   func() (string, error) { return version, nil },
	}

	return Builtins{
		library: library,
	}
}

// Get looks up a builtin by name, returning the builtin and a boolean
// indicating its existence.
func (b Builtins) Get(name string) (Builtin, bool) {
	fn, ok := b.library[name]
	if !ok {
		return nil, false
	}

	return fn, true
}

// Names returns the names of every builtin, sorted.
func (b Builtins) Names() []string {
	return slices.Sorted(maps.Keys(b.library))
}

// Environment evaluates every builtin in lib once, returning an environment binding
// each under [Namespace] and each of environ (in "KEY=value" form, as returned by
// [os.Environ]) under [EnvNamespace].
//
// Environment variables whose names are not valid reference components are skipped.
func Environment(lib Library, environ []string) (*env.Environment, error) {
	values := make(map[string]any, len(lib.Names()))

	for _, name := range lib.Names() {
		fn, ok := lib.Get(name)
		if !ok {
			return nil, fmt.Errorf("builtin %s listed but not found", name)
		}

		value, err := fn()
		if err != nil {
			return nil, fmt.Errorf("builtin %s.%s: %w", Namespace, name, err)
		}

		values[name] = value
	}

	variables := make(map[string]any, len(environ))

	for _, pair := range environ {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if r, err := ref.Parse(key); err != nil || r.Len() != 1 {
			continue
		}

		variables[key] = value
	}

	return env.New(map[string]any{
		Namespace:    values,
		EnvNamespace: variables,
	})
}

// builtinUUID is the implementation of the 'uuid' builtin.
func builtinUUID() (string, error) {
	uid, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate a new uuid: %w", err)
	}

	return uid.String(), nil
}

// builtinTimestamp is the implementation of the 'timestamp' builtin, the current
// UTC time in RFC 3339 format.
func builtinTimestamp() (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

// builtinHostname is the implementation of the 'hostname' builtin.
func builtinHostname() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("could not get hostname: %w", err)
	}

	return name, nil
}
