package inference

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ShivamCore/mlserve/internal/model"
)

// Registry holds one dispatcher per task, built once at process start.
type Registry struct {
	order       []string
	dispatchers map[string]*Dispatcher
}

// NewRegistry indexes the given dispatchers by task, keeping their order.
func NewRegistry(dispatchers ...*Dispatcher) (*Registry, error) {
	r := &Registry{dispatchers: make(map[string]*Dispatcher, len(dispatchers))}
	for _, d := range dispatchers {
		task := d.Endpoint().Task
		if _, dup := r.dispatchers[task]; dup {
			return nil, fmt.Errorf("duplicate task %q", task)
		}
		r.dispatchers[task] = d
		r.order = append(r.order, task)
	}
	return r, nil
}

// LoadRegistry loads every catalog endpoint's bundle from modelDir. A task
// whose bundle cannot be loaded serves its fallback for the process lifetime.
func LoadRegistry(modelDir string) (*Registry, error) {
	endpoints := Endpoints()
	dispatchers := make([]*Dispatcher, 0, len(endpoints))
	for _, ep := range endpoints {
		bundle, err := model.LoadBundle(modelDir, ep.Task, ep.Schema)
		if err != nil {
			entry := logrus.WithError(err).WithFields(logrus.Fields{
				"task":      ep.Task,
				"model_dir": modelDir,
			})
			if errors.Is(err, model.ErrUnavailable) {
				entry.Warn("model artifact not found; serving fallback responses")
			} else {
				entry.Error("model bundle rejected; serving fallback responses")
			}
			bundle = nil
		}
		d, err := NewDispatcher(ep, bundle)
		if err != nil {
			return nil, err
		}
		dispatchers = append(dispatchers, d)
	}
	return NewRegistry(dispatchers...)
}

// Get returns the dispatcher for task.
func (r *Registry) Get(task string) (*Dispatcher, bool) {
	d, ok := r.dispatchers[task]
	return d, ok
}

// All returns the dispatchers in catalog order.
func (r *Registry) All() []*Dispatcher {
	out := make([]*Dispatcher, 0, len(r.order))
	for _, task := range r.order {
		out = append(out, r.dispatchers[task])
	}
	return out
}

// Tasks returns the registered task names in catalog order.
func (r *Registry) Tasks() []string {
	return append([]string(nil), r.order...)
}
