package dispatcher

import (
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo"
)

type Option func(*Dispatcher)

func Clock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// Transactor makes every step commit its writes atomically.
func Transactor(tx repo.Transactor) Option {
	return func(d *Dispatcher) {
		d.tx = tx
	}
}
