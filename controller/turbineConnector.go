package controller

import (
	"context"
	"log"
	"sync"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/codec"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// turbineConnector drives one turbine's channel. Every received frame gets
// exactly one reply; frames that join no step are answered with a fallback
// setpoint so the turbine side never blocks on a missing reply.
type turbineConnector struct {
	turbine common.TurbineConfig
	channel Channel
	logic   *logic
}

func newTurbineConnector(turbine common.TurbineConfig, channel Channel, logic *logic) *turbineConnector {
	return &turbineConnector{turbine: turbine, channel: channel, logic: logic}
}

func (t *turbineConnector) start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.run(ctx)
	}()
}

func (t *turbineConnector) run(ctx context.Context) {
	for {
		payload, err := t.channel.Recv()
		if err != nil {
			if ctx.Err() == nil {
				t.logic.onChannelDown(t.turbine.Id, err)
			}
			return
		}

		reply, leaving := t.handle(ctx, payload)
		if reply == nil {
			return
		}

		err = t.channel.Send(reply)
		if leaving {
			// the goodbye is acknowledged on a best effort basis
			t.logic.onDeparted(t.turbine.Id)
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				t.logic.onChannelDown(t.turbine.Id, err)
			}
			return
		}
	}
}

// handle turns one frame into one reply. A nil reply means the controller
// shut down while the report waited for its setpoint; leaving marks the
// turbine's final frame.
func (t *turbineConnector) handle(ctx context.Context, payload []byte) ([]byte, bool) {
	m, err := codec.DecodeMeasurement(t.channel.Name(), payload)
	if err != nil {
		return t.logic.onMalformed(t.turbine.Id, err), false
	}
	if m.TurbineId != t.turbine.Id {
		return t.logic.onMisdirected(t.turbine.Id, m), false
	}
	if m.Status == common.STATUS_DISCONNECT {
		return t.logic.onDisconnect(t.turbine.Id, m), true
	}
	return t.logic.onMeasurement(ctx, t.turbine.Id, m), false
}

func (t *turbineConnector) stop() {
	if err := t.channel.Close(); err != nil {
		log.Printf("controller - closing channel %s: %v", t.channel.Name(), err)
	}
}
