package cache

import "context"

// Outcome is the result of one refresh attempt.
// Message carries diagnostic text; it never changes OK.
type Outcome struct {
	OK      bool
	Message string
}

// Trigger runs the external refresh action and blocks until it completes.
// Implementations own their timeout.
type Trigger interface {
	Trigger(ctx context.Context) Outcome
}

// TriggerFunc adapts a function to the Trigger interface.
type TriggerFunc func(ctx context.Context) Outcome

// Trigger calls f(ctx).
func (f TriggerFunc) Trigger(ctx context.Context) Outcome {
	return f(ctx)
}

// noTrigger is used when no refresh action is configured.
var noTrigger = TriggerFunc(func(context.Context) Outcome {
	return Outcome{OK: false, Message: "no refresh action configured"}
})
