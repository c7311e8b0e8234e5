package intake

import (
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/pkg/backoff"
)

type Option func(*UseCase)

func MaxRetries(n int) Option {
	return func(uc *UseCase) {
		if n > 0 {
			uc.maxRetries = n
		}
	}
}

func Backoff(p backoff.Policy) Option {
	return func(uc *UseCase) {
		uc.backoff = p
	}
}

func Clock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}
