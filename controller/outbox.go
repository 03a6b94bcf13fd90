package controller

import (
	"context"
	"sync"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// outbox holds the pending reply for each turbine channel. A slot buffers
// exactly one setpoint so a forced step close can leave a fallback behind
// for a turbine that has not even asked yet; dispatching over an uncollected
// setpoint supersedes it.
type outbox struct {
	mutex sync.Mutex
	slots map[int]chan common.Setpoint
}

func newOutbox(ids []int) *outbox {
	slots := make(map[int]chan common.Setpoint, len(ids))
	for _, id := range ids {
		slots[id] = make(chan common.Setpoint, 1)
	}
	return &outbox{slots: slots}
}

// put queues a setpoint for the turbine. Returns true when an uncollected
// one had to make room.
func (o *outbox) put(id int, setpoint common.Setpoint) bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	slot, ok := o.slots[id]
	if !ok {
		return false
	}

	select {
	case slot <- setpoint:
		return false
	default:
	}

	select {
	case <-slot:
	default:
	}
	slot <- setpoint
	return true
}

// await blocks until a setpoint arrives or the context ends. A setpoint that
// was already queued when the context ended is still delivered.
func (o *outbox) await(ctx context.Context, id int) (common.Setpoint, bool) {
	slot, ok := o.slots[id]
	if !ok {
		return common.Setpoint{}, false
	}

	select {
	case setpoint := <-slot:
		return setpoint, true
	case <-ctx.Done():
		select {
		case setpoint := <-slot:
			return setpoint, true
		default:
			return common.Setpoint{}, false
		}
	}
}

// take collects a queued setpoint without blocking.
func (o *outbox) take(id int) (common.Setpoint, bool) {
	slot, ok := o.slots[id]
	if !ok {
		return common.Setpoint{}, false
	}

	select {
	case setpoint := <-slot:
		return setpoint, true
	default:
		return common.Setpoint{}, false
	}
}
