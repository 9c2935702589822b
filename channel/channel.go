// Package channel defines the messaging gateway that delivers sanitized
// replies to the end user, and its concrete adapters.
package channel

import (
	"context"
)

// Gateway delivers final sanitized text to the end user. Implementations do
// no parsing and no command handling; the inbound side of any transport lives
// outside the engine.
type Gateway interface {
	// Name identifies the transport in logs.
	Name() string

	// Deliver sends text to the conversation's user. The text handed in is
	// already sanitized, length-bounded and non-empty.
	Deliver(ctx context.Context, conversationID, text string) error
}

// Noop is a Gateway that discards deliveries. Used when the caller of the
// engine handles delivery itself.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Deliver(_ context.Context, _, _ string) error { return nil }

var _ Gateway = Noop{}
