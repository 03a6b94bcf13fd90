package controller

import (
	"math"
	"sort"
	"sync"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// closedStep is the outcome of one barrier round: the reports collected for
// it and the turbines that never delivered one.
type closedStep struct {
	number  int
	time    float64
	reports map[int]common.Measurement
	missing []int
}

// stepRegistry owns the step barrier. A step opens with the first report of
// a new simulation time and closes when every registered turbine has
// reported, when a turbine deregisters as the last one missing, or when the
// watchdog aborts the step. All transitions happen under one mutex, so
// exactly one caller receives the closed step and dispatches it.
type stepRegistry struct {
	mutex    sync.Mutex
	required map[int]bool
	reports  map[int]common.Measurement
	stepTime float64
	open     bool
	lastTime float64
	steps    int
}

func newStepRegistry(ids []int) *stepRegistry {
	required := make(map[int]bool, len(ids))
	for _, id := range ids {
		required[id] = true
	}
	return &stepRegistry{
		required: required,
		reports:  make(map[int]common.Measurement),
		lastTime: math.Inf(-1),
	}
}

// record files a report into the barrier. opened is true when the report
// started a new step; the closed step is non nil when this report was the
// last one missing.
func (r *stepRegistry) record(m common.Measurement) (bool, *closedStep, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.required[m.TurbineId] {
		return false, nil, &UnknownTurbineError{TurbineId: m.TurbineId}
	}

	opened := false
	if !r.open {
		if m.Time <= r.lastTime {
			return false, nil, &TimeMismatchError{TurbineId: m.TurbineId, Reported: m.Time, StepTime: r.lastTime}
		}
		r.open = true
		r.stepTime = m.Time
		r.reports = make(map[int]common.Measurement, len(r.required))
		opened = true
	} else {
		if _, duplicate := r.reports[m.TurbineId]; duplicate {
			return false, nil, &DuplicateReportError{TurbineId: m.TurbineId, StepTime: r.stepTime}
		}
		if m.Time != r.stepTime {
			return false, nil, &TimeMismatchError{TurbineId: m.TurbineId, Reported: m.Time, StepTime: r.stepTime}
		}
	}

	r.reports[m.TurbineId] = m
	if len(r.reports) == len(r.required) {
		return opened, r.closeLocked(), nil
	}
	return opened, nil, nil
}

// deregister removes a turbine from the barrier and reports how many remain.
// Removing the last missing turbine of an open step closes it.
func (r *stepRegistry) deregister(id int) (*closedStep, int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.required, id)
	remaining := len(r.required)
	if !r.open {
		return nil, remaining
	}

	delete(r.reports, id)
	if remaining == 0 {
		r.open = false
		return nil, 0
	}
	if len(r.reports) == len(r.required) {
		return r.closeLocked(), remaining
	}
	return nil, remaining
}

// abort force closes the open step. Returns nil when no step is open, which
// happens when the step completed between the watchdog firing and this call.
func (r *stepRegistry) abort() *closedStep {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.open {
		return nil
	}
	return r.closeLocked()
}

// pending lists the turbines the open step is still waiting for.
func (r *stepRegistry) pending() (float64, []int, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.open {
		return 0, nil, false
	}
	return r.stepTime, r.missingLocked(), true
}

func (r *stepRegistry) completedSteps() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.steps
}

// lastStepTime is the simulation time of the last closed step, negative
// infinity before the first one.
func (r *stepRegistry) lastStepTime() float64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.lastTime
}

func (r *stepRegistry) closeLocked() *closedStep {
	step := &closedStep{
		number:  r.steps + 1,
		time:    r.stepTime,
		reports: r.reports,
		missing: r.missingLocked(),
	}

	r.open = false
	r.lastTime = r.stepTime
	r.steps++
	r.reports = make(map[int]common.Measurement)

	return step
}

func (r *stepRegistry) missingLocked() []int {
	missing := make([]int, 0)
	for id := range r.required {
		if _, ok := r.reports[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Ints(missing)
	return missing
}
