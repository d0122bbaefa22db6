package buildwire

import (
	"fmt"
	"regexp"

	"github.com/buildwire/buildwire-go/wire"
)

// OnLoadArgs carries the path a loader is asked to intercept.
type OnLoadArgs struct {
	Path string
}

// OnLoadResult is what a loader returns for an intercepted path. A nil
// result means "no interception": the worker falls through to its default
// loading for that path.
type OnLoadResult struct {
	Contents *string
	Loader   string
	Errors   []Message
	Warnings []Message
}

// Loader intercepts file loads during a build. Callbacks never cross the
// transport; only their descriptors do, and invocations flow back as
// worker requests.
type Loader interface {
	Load(args OnLoadArgs) (*OnLoadResult, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(args OnLoadArgs) (*OnLoadResult, error)

func (f LoaderFunc) Load(args OnLoadArgs) (*OnLoadResult, error) {
	return f(args)
}

type loaderRule struct {
	filter        string
	matchInternal bool
	loader        Loader
}

// Plugin is a named, ordered set of loader rules registered for the
// duration of one build.
type Plugin struct {
	name  string
	rules []loaderRule
}

// SetName names the plugin. It must be called exactly once, with a
// non-empty name, before any loader is added.
func (p *Plugin) SetName(name string) error {
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if p.name != "" {
		return fmt.Errorf("plugin name is already set to %q", p.name)
	}
	p.name = name
	return nil
}

// OnLoad adds a loader matching filter, a regular expression given as its
// source string. An already-compiled pattern object is not accepted by
// this API: pass the pattern source. matchInternal extends the filter to
// the worker's internal paths.
func (p *Plugin) OnLoad(filter string, matchInternal bool, loader Loader) error {
	if p.name == "" {
		return fmt.Errorf("plugin name must be set before adding loaders")
	}
	if filter == "" {
		return fmt.Errorf("loader for plugin %q is missing a filter", p.name)
	}
	if _, err := regexp.Compile(filter); err != nil {
		return fmt.Errorf("invalid filter %q for plugin %q: %w", filter, p.name, err)
	}
	if loader == nil {
		return fmt.Errorf("loader for plugin %q is nil", p.name)
	}
	p.rules = append(p.rules, loaderRule{
		filter:        filter,
		matchInternal: matchInternal,
		loader:        loader,
	})
	return nil
}

// Bridge maps per-build activation keys to host-side loader callbacks.
// It is owned by one Service and shares that service's single-writer
// discipline; it holds no lock of its own.
type Bridge struct {
	nextKey uint32
	regs    map[uint32][]loaderRule
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{regs: make(map[uint32][]loaderRule)}
}

// Register binds the plugins' loaders to a fresh activation key, unique
// among builds concurrently sharing the channel, and returns the wire
// descriptors for the request payload. Descriptors carry key, name,
// filter and matchInternal; the callback itself stays host-side.
func (b *Bridge) Register(plugins []*Plugin) (uint32, []interface{}, error) {
	key := b.nextKey

	var rules []loaderRule
	var descriptors []interface{}
	for _, p := range plugins {
		if p == nil {
			return 0, nil, fmt.Errorf("nil plugin in plugin list")
		}
		if p.name == "" {
			return 0, nil, fmt.Errorf("plugin has no name")
		}
		for _, r := range p.rules {
			descriptors = append(descriptors, map[string]interface{}{
				"key":           int(key),
				"name":          p.name,
				"filter":        r.filter,
				"matchInternal": r.matchInternal,
			})
			rules = append(rules, r)
		}
	}

	b.nextKey++
	b.regs[key] = rules
	return key, descriptors, nil
}

// Dispatch runs the loader at index within the registration for key and
// normalizes its result to a response value. A nil loader result yields
// an empty map: no interception, fall through. A dispatch for a key that
// was never registered or already unregistered fails, distinctly from a
// loader that matched nothing.
func (b *Bridge) Dispatch(key uint32, index int, path string) (map[string]interface{}, error) {
	rules, ok := b.regs[key]
	if !ok {
		return nil, fmt.Errorf("no plugins registered for key %d", key)
	}
	if index < 0 || index >= len(rules) {
		return nil, fmt.Errorf("loader index %d out of range for key %d", index, key)
	}

	result, err := rules[index].loader.Load(OnLoadArgs{Path: path})
	if err != nil {
		return nil, err
	}

	value := map[string]interface{}{}
	if result == nil {
		return value, nil
	}
	if result.Contents != nil {
		value["contents"] = []byte(*result.Contents)
	}
	if result.Loader != "" {
		value["loader"] = result.Loader
	}
	if len(result.Errors) > 0 {
		value["errors"] = encodeMessages(sanitizeMessages(result.Errors))
	}
	if len(result.Warnings) > 0 {
		value["warnings"] = encodeMessages(sanitizeMessages(result.Warnings))
	}
	return value, nil
}

// Unregister removes the activation key. A stray worker request that
// still references the torn-down build then fails at lookup instead of
// invoking a stale callback; this bounds a registration's lifetime to
// exactly its enclosing build.
func (b *Bridge) Unregister(key uint32) {
	delete(b.regs, key)
}

// dispatchValue answers an inbound plugin invocation request.
func (b *Bridge) dispatchValue(value map[string]interface{}) (map[string]interface{}, error) {
	key, ok := wire.IntField(value, "key")
	if !ok {
		return nil, fmt.Errorf("plugin request is missing key")
	}
	index, ok := wire.IntField(value, "index")
	if !ok {
		return nil, fmt.Errorf("plugin request is missing index")
	}
	path, _ := wire.StringField(value, "path")
	return b.Dispatch(uint32(key), index, path)
}
