package controller

import (
	"errors"
	"fmt"
)

// ErrTransport and ErrOptimization classify why a run terminated; the main
// program maps them to exit codes.
var ErrTransport = errors.New("transport failure")
var ErrOptimization = errors.New("optimization failure")

// DuplicateReportError marks a second report from the same turbine within
// one step.
type DuplicateReportError struct {
	TurbineId int
	StepTime  float64
}

func (e *DuplicateReportError) Error() string {
	return fmt.Sprintf("turbine %d already reported for the step at t=%.3f", e.TurbineId, e.StepTime)
}

// TimeMismatchError marks a report whose simulation time does not belong to
// the open step, or that arrived after its step was already closed.
type TimeMismatchError struct {
	TurbineId int
	Reported  float64
	StepTime  float64
}

func (e *TimeMismatchError) Error() string {
	return fmt.Sprintf("turbine %d reported t=%.3f, step is at t=%.3f", e.TurbineId, e.Reported, e.StepTime)
}

// UnknownTurbineError marks a report from a turbine that is not part of the
// barrier, either never configured or already deregistered.
type UnknownTurbineError struct {
	TurbineId int
}

func (e *UnknownTurbineError) Error() string {
	return fmt.Sprintf("turbine %d is not registered", e.TurbineId)
}
