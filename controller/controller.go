// Package controller implements the closed loop farm controller. It holds
// one request reply channel per turbine, synchronizes their reports into
// simulation steps, and answers each step with freshly computed yaw offsets.
package controller

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/audit"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// SetpointComputer turns one step's reports into yaw offsets per turbine id.
// It is called once per closed step and must tolerate overlapping calls;
// steps close in order but a slow status publish can overlap the tail of one
// dispatch with the next computation.
type SetpointComputer interface {
	ComputeSetpoints(simTime float64, reports map[int]common.Measurement) (map[int]float64, error)
}

// StatusPublisher mirrors step summaries, anomalies and liveness heartbeats
// onto an operator status bus. A nil publisher disables the mirror; the audit
// log is written either way.
type StatusPublisher interface {
	PublishStepSummary(ctx context.Context, summary common.StepSummary) error
	PublishAnomaly(ctx context.Context, anomaly common.Anomaly) error
	PublishHeartbeat(ctx context.Context, heartbeat common.Heartbeat) error
}

type Controller struct {
	config     *common.Config
	logic      *logic
	connectors []*turbineConnector
	heartbeat  common.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	done   chan struct{}
	err    error
}

// NewController wires the channels to the step logic. Every configured
// turbine needs exactly one channel.
func NewController(config *common.Config, channels map[int]Channel, computer SetpointComputer, status StatusPublisher, auditLog *audit.Logger) (*Controller, error) {
	if computer == nil {
		return nil, &common.ConfigurationError{Detail: "no setpoint computer"}
	}
	if len(channels) != len(config.Farm.Turbines) {
		return nil, &common.ConfigurationError{Detail: fmt.Sprintf("%d channels for %d turbines", len(channels), len(config.Farm.Turbines))}
	}

	c := &Controller{config: config, done: make(chan struct{})}
	c.logic = newLogic(config, computer, status, auditLog, c.fail)

	for _, turbine := range config.Farm.Turbines {
		channel, ok := channels[turbine.Id]
		if !ok || channel == nil {
			return nil, &common.ConfigurationError{Detail: fmt.Sprintf("turbine %d has no channel", turbine.Id)}
		}
		c.connectors = append(c.connectors, newTurbineConnector(turbine, channel, c.logic))
	}

	return c, nil
}

func (c *Controller) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())

	for _, connector := range c.connectors {
		connector.start(c.ctx, &c.wg)
	}

	if c.logic.status != nil && c.config.Loop.HeartbeatInterval > 0 {
		c.heartbeat.Start(c.config.Loop.HeartbeatWait(), c.logic.publishHeartbeat)
	}

	log.Printf("controller - started, %d turbine(s), stall policy %s, fallback %s",
		len(c.connectors), c.config.Loop.StallPolicy, c.config.Loop.FallbackPolicy)
	return nil
}

// Stop shuts the controller down and waits for the channel workers.
func (c *Controller) Stop() {
	c.fail(nil)
	<-c.done
}

// Done closes when the run ended, whether by Stop, by the last turbine
// disconnecting, or by an escalated failure.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err reports why the run ended. It is nil for a clean shutdown and nil
// while the controller still runs.
func (c *Controller) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Controller) CompletedSteps() int {
	return c.logic.registry.completedSteps()
}

// fail ends the run once. Closing the channels unblocks the workers stuck
// in Recv; the waiter goroutine keeps Stop callable from a worker without
// deadlocking on its own exit.
func (c *Controller) fail(err error) {
	c.once.Do(func() {
		c.err = err
		if c.cancel != nil {
			c.cancel()
		}
		c.heartbeat.Stop()
		c.logic.watchdog.Stop()
		if stepTime, missing, ok := c.logic.registry.pending(); ok {
			log.Printf("controller - abandoning the open step at t=%.3f, %d turbine(s) never reported", stepTime, len(missing))
			c.logic.audit.Event(stepTime, fmt.Sprintf("step abandoned on shutdown, missing turbines %v", missing))
		}
		for _, connector := range c.connectors {
			connector.stop()
		}
		go func() {
			c.wg.Wait()
			close(c.done)
		}()
	})
}
