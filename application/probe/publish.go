package probe

import (
	"context"
	"errors"
)

// Publisher ships a finished report outside the process
type Publisher interface {
	Publish(ctx context.Context, report *Report) error
}

// Publishers fans a report out to every publisher, attempting all of them
type Publishers []Publisher

// Publish implements Publisher and joins the failures
func (ps Publishers) Publish(ctx context.Context, report *Report) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
