package energy

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no appliance has the requested id.
	ErrNotFound = errors.New("appliance not found")

	// ErrInvalidStatus is returned for a status other than on or off.
	ErrInvalidStatus = errors.New("invalid appliance status")

	// ErrInvalidAppliance is wrapped by every load-time rejection.
	ErrInvalidAppliance = errors.New("invalid appliance")
)

// Registry is the ordered appliance inventory. Only status is mutable.
// Not safe for concurrent use; callers serialize access.
type Registry struct {
	items []Appliance
	index map[int]int // id -> position in items
}

// NewRegistry builds a registry from list, keeping insertion order.
// Invalid entries are skipped; the returned error joins one error per
// rejected entry and the registry is usable either way.
func NewRegistry(list []Appliance) (*Registry, error) {
	r := &Registry{
		items: make([]Appliance, 0, len(list)),
		index: make(map[int]int, len(list)),
	}

	var errs []error
	for i, a := range list {
		if err := validate(a); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (id %d): %w", i, a.ID, err))
			continue
		}
		if _, dup := r.index[a.ID]; dup {
			errs = append(errs, fmt.Errorf("entry %d (id %d): duplicate id: %w", i, a.ID, ErrInvalidAppliance))
			continue
		}
		r.index[a.ID] = len(r.items)
		r.items = append(r.items, a)
	}
	return r, errors.Join(errs...)
}

func validate(a Appliance) error {
	switch {
	case a.Name == "":
		return fmt.Errorf("empty name: %w", ErrInvalidAppliance)
	case a.Type == "":
		return fmt.Errorf("empty type: %w", ErrInvalidAppliance)
	case !(a.PowerRating > 0):
		return fmt.Errorf("power rating %v not positive: %w", a.PowerRating, ErrInvalidAppliance)
	case !a.Status.Valid():
		return fmt.Errorf("status %q: %w", a.Status, ErrInvalidStatus)
	}
	return nil
}

// Len returns the number of appliances.
func (r *Registry) Len() int {
	return len(r.items)
}

// List returns a copy of all appliances in insertion order.
func (r *Registry) List() []Appliance {
	out := make([]Appliance, len(r.items))
	copy(out, r.items)
	return out
}

// Get returns the appliance with the given id.
func (r *Registry) Get(id int) (Appliance, error) {
	i, ok := r.index[id]
	if !ok {
		return Appliance{}, fmt.Errorf("appliance %d: %w", id, ErrNotFound)
	}
	return r.items[i], nil
}

// SetStatus sets the status of appliance id and returns the previous one.
// Nothing changes on error.
func (r *Registry) SetStatus(id int, s Status) (Status, error) {
	if !s.Valid() {
		return "", fmt.Errorf("appliance %d: status %q: %w", id, s, ErrInvalidStatus)
	}
	i, ok := r.index[id]
	if !ok {
		return "", fmt.Errorf("appliance %d: %w", id, ErrNotFound)
	}
	prev := r.items[i].Status
	r.items[i].Status = s
	return prev, nil
}
