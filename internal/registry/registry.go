package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/phaserun/internal/operations"
)

// Module is the interface that all plugin modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// OptionDescriber is implemented by plugins that declare the task options
// they cannot run without.
type OptionDescriber interface {
	RequiredOptions() []string
}

// Registry holds the task plugins and lifecycle hooks of one application
// instance.
type Registry struct {
	plugins map[string]operations.TaskPlugin
	hooks   map[operations.LifecycleStage][]operations.LifecycleHook
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		plugins: make(map[string]operations.TaskPlugin),
		hooks:   make(map[operations.LifecycleStage][]operations.LifecycleHook),
	}
}

// RegisterPlugin registers the implementation of a task plugin.
func (r *Registry) RegisterPlugin(name string, plugin operations.TaskPlugin) {
	if _, exists := r.plugins[name]; exists {
		panic(fmt.Sprintf("task plugin with name '%s' already registered", name))
	}
	slog.Debug("Registering task plugin.", "name", name)
	r.plugins[name] = plugin
}

// RegisterLifecycleHook appends a hook for the given lifecycle stage.
func (r *Registry) RegisterLifecycleHook(stage operations.LifecycleStage, hook operations.LifecycleHook) {
	r.hooks[stage] = append(r.hooks[stage], hook)
}

// Plugin returns the plugin registered under name.
func (r *Registry) Plugin(name string) (operations.TaskPlugin, error) {
	plugin, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("task plugin '%s' is not registered", name)
	}
	return plugin, nil
}

// Hooks returns the hooks registered for stage, in registration order.
func (r *Registry) Hooks(stage operations.LifecycleStage) []operations.LifecycleHook {
	return append([]operations.LifecycleHook(nil), r.hooks[stage]...)
}

// PluginNames returns the sorted names of all registered plugins.
func (r *Registry) PluginNames() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
