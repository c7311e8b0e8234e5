package entity

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable_failure"
	case OutcomePermanent:
		return "permanent_failure"
	}
	return "unknown"
}

// Outcome is the terminal result of dispatching one IntakeEvent.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func Success() Outcome {
	return Outcome{Kind: OutcomeSuccess}
}

func RetryableFailure(reason string) Outcome {
	return Outcome{Kind: OutcomeRetryable, Reason: reason}
}

func PermanentFailure(reason string) Outcome {
	return Outcome{Kind: OutcomePermanent, Reason: reason}
}
