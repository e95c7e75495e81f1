// Package deliver sends rendered charts to their destination.
package deliver

import (
	"context"
	stderrors "errors"
)

// Deliverer hands one rendered image to a destination.
type Deliverer interface {
	Deliver(ctx context.Context, image []byte, caption string) error
}

// Fanout delivers to every destination, in order, and joins the failures.
type Fanout []Deliverer

func (f Fanout) Deliver(ctx context.Context, image []byte, caption string) error {
	var errs []error
	for _, d := range f {
		if err := d.Deliver(ctx, image, caption); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
