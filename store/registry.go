// Package store holds the registry of Blobstore implementations
// and helpers for configuring them.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/bobg/scm"
)

// Factory creates a Blobstore from a configuration map.
type Factory func(context.Context, map[string]interface{}) (scm.Blobstore, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Factory)
)

// Register makes a Factory available to Create under the given key.
// Implementations call it from an init function.
func Register(key string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[key] = f
}

// Create makes a Blobstore of the type registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (scm.Blobstore, error) {
	registryMu.Lock()
	f, ok := registry[key]
	registryMu.Unlock()
	if !ok {
		return nil, errors.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}

// Types lists the registered keys.
func Types() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	var result []string
	for k := range registry {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// FromConfig makes a Blobstore from a configuration map
// whose "type" entry names the registered Factory.
func FromConfig(ctx context.Context, conf map[string]interface{}) (scm.Blobstore, error) {
	typ, ok := conf["type"].(string)
	if !ok {
		return nil, errors.New(`config missing "type"`)
	}
	return Create(ctx, typ, conf)
}

// Nested makes the Blobstore described by the sub-map conf[key].
// Wrapping stores use it for their "nested" parameter.
func Nested(ctx context.Context, conf map[string]interface{}, key string) (scm.Blobstore, error) {
	nested, ok := conf[key].(map[string]interface{})
	if !ok {
		return nil, errors.Errorf(`missing "%s" parameter`, key)
	}
	s, err := FromConfig(ctx, nested)
	return s, errors.Wrapf(err, "creating %s store", key)
}
