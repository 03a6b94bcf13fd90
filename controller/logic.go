package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/audit"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/codec"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

const publishTimeout = 500 * time.Millisecond

// logic coordinates the step barrier: it collects one report per registered
// turbine, computes the farm's yaw offsets, and releases every waiting
// channel with its setpoint. All handlers run on the channel workers'
// goroutines; the registry serializes the step transitions.
type logic struct {
	config   *common.Config
	computer SetpointComputer
	status   StatusPublisher
	audit    *audit.Logger

	registry *stepRegistry
	state    *farmState
	outbox   *outbox
	watchdog *common.Watchdog
	fail     func(error)
}

func newLogic(config *common.Config, computer SetpointComputer, status StatusPublisher, auditLog *audit.Logger, fail func(error)) *logic {
	ids := config.TurbineIds()
	return &logic{
		config:   config,
		computer: computer,
		status:   status,
		audit:    auditLog,
		registry: newStepRegistry(ids),
		state:    newFarmState(ids),
		outbox:   newOutbox(ids),
		watchdog: &common.Watchdog{},
		fail:     fail,
	}
}

// onMeasurement files a report and blocks until the step it belongs to has
// been dispatched. Returns nil when the controller shuts down first.
func (l *logic) onMeasurement(ctx context.Context, turbineId int, m common.Measurement) []byte {
	l.audit.Measurement(m)

	opened, step, err := l.registry.record(m)
	if err != nil {
		return l.onRejected(turbineId, m, err)
	}

	l.state.noteMeasurement(turbineId)
	if opened {
		l.watchdog.Start(l.config.Loop.StallWait(), l.onStepStalled)
	}
	if step != nil {
		l.closeStep(step)
	}

	for {
		setpoint, ok := l.outbox.await(ctx, turbineId)
		if !ok {
			return nil
		}
		// a reply older than the report's step is a leftover from a forced
		// close this turbine already answered; the step just joined delivers
		// a fresh one
		if setpoint.Time >= m.Time {
			return codec.EncodeSetpoint(setpoint)
		}
	}
}

// closeStep computes the offsets for a closed step and dispatches them. On
// an optimization failure the farm falls back and keeps running until the
// failure streak exhausts the configured limit.
func (l *logic) closeStep(step *closedStep) {
	l.watchdog.Stop()

	var escalate error
	offsets, err := l.computer.ComputeSetpoints(step.time, step.reports)
	if err != nil {
		failures := l.state.noteOptimizationFailure()
		log.Printf("controller - optimization failed at t=%.3f (%d in a row): %v", step.time, failures, err)
		l.publishAnomaly(0, step.time, common.ANOMALY_OPTIMIZATION, err.Error())
		offsets = l.fallbackOffsets(step)
		if failures >= l.config.Loop.MaxOptimizationFailures {
			escalate = ErrOptimization
		}
	} else {
		l.state.clearOptimizationFailures()
	}

	l.dispatch(step, offsets)

	if escalate != nil {
		log.Printf("controller - giving up after %d consecutive optimization failures", l.config.Loop.MaxOptimizationFailures)
		l.fail(escalate)
	}
}

// dispatch queues one setpoint per turbine of the step. Turbines the step
// was closed without get a fallback left in their slot; it is handed out
// when their late report eventually arrives.
func (l *logic) dispatch(step *closedStep, offsets map[int]float64) {
	var escalate error
	dispatched := make(map[int]float64, len(offsets))

	for id := range step.reports {
		offset, ok := offsets[id]
		if !ok {
			offset = l.fallbackOffset(id)
		}
		l.send(id, step.time, offset)
		dispatched[id] = offset
	}

	for _, id := range step.missing {
		stalls := l.state.noteStall(id)
		log.Printf("controller - turbine %d missed the step at t=%.3f (%d in a row)", id, step.time, stalls)
		l.publishAnomaly(id, step.time, common.ANOMALY_STALL, fmt.Sprintf("no report within %s", l.config.Loop.StallWait()))

		offset := l.fallbackOffset(id)
		l.send(id, step.time, offset)
		dispatched[id] = offset

		if stalls >= l.config.Loop.MaxTurbineStalls {
			escalate = ErrTransport
		}
	}

	l.publishSummary(step, dispatched)
	log.Printf("controller - step %d dispatched at t=%.3f to %d turbine(s)", step.number, step.time, len(dispatched))

	if escalate != nil {
		log.Printf("controller - a turbine stayed silent for %d steps in a row, giving up", l.config.Loop.MaxTurbineStalls)
		l.fail(escalate)
	}
}

func (l *logic) send(id int, simTime float64, offset float64) {
	setpoint := common.Setpoint{TurbineId: id, Time: simTime, YawOffset: offset}
	if l.outbox.put(id, setpoint) {
		log.Printf("controller - superseding an uncollected setpoint for turbine %d", id)
	}
	l.state.noteDispatch(id, offset)
	l.audit.Setpoint(setpoint)
}

// onStepStalled runs when the watchdog fires while a step is still open.
func (l *logic) onStepStalled() {
	if l.config.Loop.StallPolicy == common.STALL_POLICY_WAIT {
		stepTime, missing, ok := l.registry.pending()
		if !ok {
			return
		}

		var escalate error
		for _, id := range missing {
			stalls := l.state.noteStall(id)
			log.Printf("controller - still waiting for turbine %d at t=%.3f (%d timeouts)", id, stepTime, stalls)
			l.publishAnomaly(id, stepTime, common.ANOMALY_STALL, fmt.Sprintf("no report within %s, waiting", l.config.Loop.StallWait()))
			if stalls >= l.config.Loop.MaxTurbineStalls {
				escalate = ErrTransport
			}
		}

		l.watchdog.Start(l.config.Loop.StallWait(), l.onStepStalled)
		if escalate != nil {
			log.Printf("controller - a turbine stayed silent for %d timeouts in a row, giving up", l.config.Loop.MaxTurbineStalls)
			l.fail(escalate)
		}
		return
	}

	step := l.registry.abort()
	if step == nil {
		return
	}
	log.Printf("controller - step at t=%.3f stalled, proceeding without %d turbine(s)", step.time, len(step.missing))
	l.closeStep(step)
}

// onRejected answers a report that joined no step. A fallback already queued
// by a forced step close takes precedence, which is how a late straggler
// still receives the setpoint of the step it missed.
func (l *logic) onRejected(turbineId int, m common.Measurement, err error) []byte {
	kind := common.ANOMALY_LATE
	var duplicate *DuplicateReportError
	var unknown *UnknownTurbineError
	if errors.As(err, &duplicate) {
		kind = common.ANOMALY_DUPLICATE
	} else if errors.As(err, &unknown) {
		kind = common.ANOMALY_UNEXPECTED_ID
	}

	log.Printf("controller - rejected report from turbine %d: %v", turbineId, err)
	l.publishAnomaly(turbineId, m.Time, kind, err.Error())
	return l.replyFor(turbineId)
}

func (l *logic) onMalformed(turbineId int, err error) []byte {
	log.Printf("controller - %v", err)
	l.publishAnomaly(turbineId, l.lastKnownTime(), common.ANOMALY_MALFORMED, err.Error())
	return l.replyFor(turbineId)
}

// onMisdirected answers a frame claiming a foreign turbine id. The
// configuration decides which turbine a channel belongs to, so the reply is
// for the channel's turbine.
func (l *logic) onMisdirected(channelTurbineId int, m common.Measurement) []byte {
	log.Printf("controller - turbine %d reported on the channel of turbine %d", m.TurbineId, channelTurbineId)
	l.publishAnomaly(channelTurbineId, m.Time, common.ANOMALY_UNEXPECTED_ID, fmt.Sprintf("frame claims turbine %d", m.TurbineId))
	return l.replyFor(channelTurbineId)
}

// onDisconnect acknowledges a turbine's final frame. Deregistration happens
// after the acknowledgement went out, in onDeparted.
func (l *logic) onDisconnect(turbineId int, m common.Measurement) []byte {
	log.Printf("controller - turbine %d disconnecting at t=%.3f", turbineId, m.Time)
	l.audit.Measurement(m)
	l.audit.Event(m.Time, fmt.Sprintf("turbine %d disconnected", turbineId))
	l.state.markDisconnected(turbineId)

	setpoint := common.Setpoint{TurbineId: turbineId, Time: m.Time, YawOffset: l.fallbackOffset(turbineId)}
	l.audit.Setpoint(setpoint)
	return codec.EncodeSetpoint(setpoint)
}

func (l *logic) onDeparted(turbineId int) {
	step, remaining := l.registry.deregister(turbineId)
	if step != nil {
		l.closeStep(step)
	}
	if remaining == 0 {
		log.Println("controller - all turbines disconnected, shutting down")
		l.fail(nil)
	}
}

func (l *logic) onChannelDown(turbineId int, err error) {
	log.Printf("controller - channel to turbine %d failed: %v", turbineId, err)
	l.publishAnomaly(turbineId, l.lastKnownTime(), common.ANOMALY_CHANNEL, err.Error())
	l.state.markDisconnected(turbineId)

	step, remaining := l.registry.deregister(turbineId)
	if step != nil {
		l.closeStep(step)
	}
	if remaining == 0 {
		log.Println("controller - all channels lost")
		l.fail(ErrTransport)
	}
}

func (l *logic) replyFor(turbineId int) []byte {
	if setpoint, ok := l.outbox.take(turbineId); ok {
		return codec.EncodeSetpoint(setpoint)
	}

	setpoint := common.Setpoint{TurbineId: turbineId, Time: l.lastKnownTime(), YawOffset: l.fallbackOffset(turbineId)}
	l.audit.Setpoint(setpoint)
	return codec.EncodeSetpoint(setpoint)
}

func (l *logic) fallbackOffsets(step *closedStep) map[int]float64 {
	offsets := make(map[int]float64, len(step.reports)+len(step.missing))
	for id := range step.reports {
		offsets[id] = l.fallbackOffset(id)
	}
	for _, id := range step.missing {
		offsets[id] = l.fallbackOffset(id)
	}
	return offsets
}

func (l *logic) fallbackOffset(id int) float64 {
	if l.config.Loop.FallbackPolicy == common.FALLBACK_ZERO {
		return 0
	}
	return l.state.lastOffset(id)
}

func (l *logic) lastKnownTime() float64 {
	simTime := l.registry.lastStepTime()
	if math.IsInf(simTime, -1) {
		return 0
	}
	return simTime
}

func (l *logic) publishSummary(step *closedStep, dispatched map[int]float64) {
	l.audit.Event(step.time, fmt.Sprintf("step %d closed, %d reported, %d missing", step.number, len(step.reports), len(step.missing)))
	if l.status == nil {
		return
	}

	summary := common.StepSummary{
		Id:         uuid.NewString(),
		FarmId:     l.config.Farm.Id,
		Step:       step.number,
		Time:       step.time,
		YawOffsets: dispatched,
		Missing:    step.missing,
		Timestamp:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := l.status.PublishStepSummary(ctx, summary); err != nil {
		log.Printf("controller - publishing step summary: %v", err)
	}
}

// publishHeartbeat runs on the heartbeat ticker so operators can tell a
// stalled simulation from a dead controller.
func (l *logic) publishHeartbeat() {
	heartbeat := common.Heartbeat{
		Id:           uuid.NewString(),
		FarmId:       l.config.Farm.Id,
		Steps:        l.registry.completedSteps(),
		LastStepTime: l.lastKnownTime(),
		Connected:    l.state.connectedCount(),
		Timestamp:    time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := l.status.PublishHeartbeat(ctx, heartbeat); err != nil {
		log.Printf("controller - publishing heartbeat: %v", err)
	}
}

func (l *logic) publishAnomaly(turbineId int, simTime float64, kind string, detail string) {
	l.audit.Anomaly(turbineId, simTime, kind, detail)
	if l.status == nil {
		return
	}

	anomaly := common.Anomaly{
		Id:        uuid.NewString(),
		FarmId:    l.config.Farm.Id,
		TurbineId: turbineId,
		Time:      simTime,
		Kind:      kind,
		Detail:    detail,
		Timestamp: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := l.status.PublishAnomaly(ctx, anomaly); err != nil {
		log.Printf("controller - publishing anomaly: %v", err)
	}
}
