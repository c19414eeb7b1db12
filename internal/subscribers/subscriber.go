package subscribers

import (
	"context"

	"github.com/ToldYaOnce/kx-reply-pacer/internal/events"
)

// Subscriber receives every outbound lifecycle event. Handle errors surface
// to the publisher, which decides whether the delivery counts as failed.
type Subscriber interface {
	Name() string
	Handle(context.Context, events.Envelope) error
}
