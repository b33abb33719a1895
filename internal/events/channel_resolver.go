package events

import (
	"fmt"

	"market-gateway/internal/domain/actor"
)

// ActorChannel is the pub/sub channel carrying one receiver's queue events.
func ActorChannel(r actor.Receiver) string {
	return fmt.Sprintf("channel:actor:%s:%s", r.Number, r.Role)
}
