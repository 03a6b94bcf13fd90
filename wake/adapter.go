// Package wake turns per turbine measurements into coordinated yaw offsets.
// The Adapter owns the measurement history and the steering schedule (warmup,
// update interval, zero order hold); the actual search runs behind the
// Optimizer interface so the model can be swapped without touching the
// coordination loop.
package wake

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// Optimizer searches yaw offsets for the whole farm at a given freestream
// wind speed. The result is indexed like the configured turbine list.
type Optimizer interface {
	OptimizeYaw(freestream float64) ([]float64, error)
}

// OptimizationError marks a step whose offsets could not be computed; the
// coordination loop falls back and keeps going.
type OptimizationError struct {
	Time   float64
	Detail string
}

func (e *OptimizationError) Error() string {
	return fmt.Sprintf("yaw optimization failed at t=%.3f: %s", e.Time, e.Detail)
}

type Adapter struct {
	config    common.WakeConfig
	turbines  []common.TurbineConfig
	optimizer Optimizer

	mutex      sync.Mutex
	history    map[int][]float64 // wind speed per turbine, newest last
	offsets    map[int]float64   // last optimized offsets
	lastUpdate float64
	upwindId   int
}

func NewAdapter(config *common.Config, optimizer Optimizer) *Adapter {
	a := &Adapter{
		config:     config.Wake,
		turbines:   config.Farm.Turbines,
		optimizer:  optimizer,
		history:    make(map[int][]float64),
		offsets:    make(map[int]float64),
		lastUpdate: math.Inf(-1),
	}

	// offsets start at zero; the most upwind rotor provides the freestream
	// estimate
	model := newGauss(config.Wake, config.Farm.Turbines)
	a.upwindId = config.Farm.Turbines[model.order[0]].Id
	for _, turbine := range config.Farm.Turbines {
		a.offsets[turbine.Id] = 0
	}

	return a
}

// ComputeSetpoints files the step's measurements into the history and returns
// the yaw offsets for every configured turbine. Outside the warmup it
// re-optimizes at most once per update interval and holds the previous
// offsets in between. On error the previous offsets stay untouched and no
// result is returned.
func (a *Adapter) ComputeSetpoints(simTime float64, reports map[int]common.Measurement) (map[int]float64, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for id, m := range reports {
		ring := append(a.history[id], m.WindSpeed)
		if len(ring) > a.config.MemorySize {
			ring = ring[len(ring)-a.config.MemorySize:]
		}
		a.history[id] = ring
	}

	if simTime < a.config.WarmupTime || simTime < a.lastUpdate+a.config.UpdateInterval {
		return a.currentOffsets(), nil
	}

	freestream, err := a.freestream()
	if err != nil {
		return nil, &OptimizationError{Time: simTime, Detail: err.Error()}
	}

	optimized, err := a.optimizer.OptimizeYaw(freestream)
	if err != nil {
		return nil, &OptimizationError{Time: simTime, Detail: err.Error()}
	}
	if len(optimized) != len(a.turbines) {
		return nil, &OptimizationError{Time: simTime, Detail: fmt.Sprintf("optimizer returned %d offsets for %d turbines", len(optimized), len(a.turbines))}
	}
	for i, offset := range optimized {
		if math.IsNaN(offset) || math.IsInf(offset, 0) {
			return nil, &OptimizationError{Time: simTime, Detail: fmt.Sprintf("offset for turbine %d is not finite", a.turbines[i].Id)}
		}
	}

	for i, turbine := range a.turbines {
		a.offsets[turbine.Id] = clamp(optimized[i], a.config.MinYaw, a.config.MaxYaw)
	}
	a.lastUpdate = simTime

	return a.currentOffsets(), nil
}

// freestream estimates the undisturbed wind speed as the mean of the most
// upwind turbine's recent wind speed window.
func (a *Adapter) freestream() (float64, error) {
	ring := a.history[a.upwindId]
	if len(ring) == 0 {
		return 0, fmt.Errorf("no wind history for upwind turbine %d", a.upwindId)
	}

	window := ring
	if len(window) > a.config.FreestreamWindow {
		window = window[len(window)-a.config.FreestreamWindow:]
	}

	freestream := stat.Mean(window, nil)
	if math.IsNaN(freestream) || math.IsInf(freestream, 0) || freestream <= 0 {
		return 0, fmt.Errorf("freestream estimate %f is not usable", freestream)
	}
	return freestream, nil
}

func (a *Adapter) currentOffsets() map[int]float64 {
	offsets := make(map[int]float64, len(a.offsets))
	for id, offset := range a.offsets {
		offsets[id] = offset
	}
	return offsets
}

func clamp(value float64, low float64, high float64) float64 {
	return math.Max(low, math.Min(high, value))
}
