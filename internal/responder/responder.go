// Package responder generates automated shop-assistant replies.
package responder

import (
	"context"
)

// Responder produces an assistant reply for a customer message.
// Implementations may take arbitrarily long (network calls); callers decide
// how failures surface to the conversation.
type Responder interface {
	Reply(ctx context.Context, prompt string) (string, error)
}
