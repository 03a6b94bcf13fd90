package controller

import (
	"sync"
)

type turbineState struct {
	lastOffset        float64
	consecutiveStalls int
	stalled           bool
	disconnected      bool
}

// farmState carries the operational picture across steps: the offsets last
// dispatched to each turbine, stall streaks, and the farm wide optimization
// failure streak.
type farmState struct {
	mutex                sync.Mutex
	turbines             map[int]*turbineState
	optimizationFailures int
}

func newFarmState(ids []int) *farmState {
	turbines := make(map[int]*turbineState, len(ids))
	for _, id := range ids {
		turbines[id] = &turbineState{}
	}
	return &farmState{turbines: turbines}
}

func (s *farmState) noteMeasurement(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if turbine, ok := s.turbines[id]; ok {
		turbine.stalled = false
		turbine.consecutiveStalls = 0
	}
}

func (s *farmState) noteDispatch(id int, offset float64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if turbine, ok := s.turbines[id]; ok {
		turbine.lastOffset = offset
	}
}

func (s *farmState) lastOffset(id int) float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if turbine, ok := s.turbines[id]; ok {
		return turbine.lastOffset
	}
	return 0
}

// noteStall returns the length of the turbine's stall streak including this
// one.
func (s *farmState) noteStall(id int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	turbine, ok := s.turbines[id]
	if !ok {
		return 0
	}
	turbine.stalled = true
	turbine.consecutiveStalls++
	return turbine.consecutiveStalls
}

func (s *farmState) markDisconnected(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if turbine, ok := s.turbines[id]; ok {
		turbine.disconnected = true
	}
}

func (s *farmState) connectedCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	count := 0
	for _, turbine := range s.turbines {
		if !turbine.disconnected {
			count++
		}
	}
	return count
}

// noteOptimizationFailure returns the length of the failure streak including
// this one.
func (s *farmState) noteOptimizationFailure() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.optimizationFailures++
	return s.optimizationFailures
}

func (s *farmState) clearOptimizationFailures() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.optimizationFailures = 0
}
