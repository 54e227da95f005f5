package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
)

// PublishError attributes a failure to a named publisher.
type PublishError struct {
	Publisher string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publisher %s: %v", e.Publisher, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

type namedPublisher struct {
	name string
	pub  Publisher
}

// Multi fans each batch out to every registered publisher in registration
// order. A failing publisher does not stop the others.
type Multi struct {
	pubs []namedPublisher
}

// NewMulti returns an empty Multi.
func NewMulti() *Multi {
	return &Multi{}
}

// Add registers a publisher under name.
func (m *Multi) Add(name string, p Publisher) {
	m.pubs = append(m.pubs, namedPublisher{name: name, pub: p})
}

// Names lists the registered publishers.
func (m *Multi) Names() []string {
	names := make([]string, len(m.pubs))
	for i, np := range m.pubs {
		names[i] = np.name
	}
	return names
}

// Publish sends events to every publisher and joins their errors.
func (m *Multi) Publish(ctx context.Context, events []domain.Event) error {
	var errs []error
	for _, np := range m.pubs {
		if err := np.pub.Publish(ctx, events); err != nil {
			errs = append(errs, &PublishError{Publisher: np.name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, np := range m.pubs {
		if err := np.pub.Close(); err != nil {
			errs = append(errs, &PublishError{Publisher: np.name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// publishErrors splits a (possibly joined) publish error into per-publisher
// failures. Errors without attribution are reported as "unknown".
func publishErrors(err error) []*PublishError {
	var flat []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		flat = joined.Unwrap()
	} else {
		flat = []error{err}
	}

	out := make([]*PublishError, 0, len(flat))
	for _, e := range flat {
		var pe *PublishError
		if errors.As(e, &pe) {
			out = append(out, pe)
			continue
		}
		out = append(out, &PublishError{Publisher: "unknown", Err: e})
	}
	return out
}
