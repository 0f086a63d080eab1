// Package hooks runs observers after a station, domain or plot mutation has
// been committed. Observers run synchronously in registration order and the
// first failure is returned to the caller, so a request whose config export
// fails reports the failure.
package hooks

import (
	"context"
	"fmt"
	"sync"
)

// Entity names the kind of record that changed.
type Entity string

const (
	EntityStation     Entity = "station"
	EntityDomain      Entity = "domain"
	EntityStationPlot Entity = "stations_plot"
	EntityDomainPlot  Entity = "domains_plot"
)

// Action names the kind of change.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event describes a committed mutation.
type Event struct {
	Entity Entity
	Action Action
	ID     string
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s", e.Entity, e.Action, e.ID)
}

// Observer reacts to committed mutations.
type Observer interface {
	AfterCommit(ctx context.Context, e Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event) error

func (f ObserverFunc) AfterCommit(ctx context.Context, e Event) error { return f(ctx, e) }

// Dispatcher fans committed events out to observers.
// A nil *Dispatcher is valid and dispatches nothing.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds an observer.
func (d *Dispatcher) Register(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// AfterCommit runs every observer and stops at the first error.
func (d *Dispatcher) AfterCommit(ctx context.Context, e Event) error {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, o := range observers {
		if err := o.AfterCommit(ctx, e); err != nil {
			return fmt.Errorf("after commit of %s: %w", e, err)
		}
	}
	return nil
}
