package wake

import (
	"errors"
	"math"
	"testing"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

type stubOptimizer struct {
	offsets     []float64
	err         error
	calls       int
	freestreams []float64
}

func (s *stubOptimizer) OptimizeYaw(freestream float64) ([]float64, error) {
	s.calls++
	s.freestreams = append(s.freestreams, freestream)
	if s.err != nil {
		return nil, s.err
	}
	return s.offsets, nil
}

func report(id int, simTime float64, wind float64) map[int]common.Measurement {
	return map[int]common.Measurement{
		id: {TurbineId: id, Status: common.STATUS_RUNNING, Time: simTime, WindSpeed: wind},
	}
}

func TestAdapterHoldsZeroDuringWarmup(t *testing.T) {
	config := rowConfig(1988, 2)
	stub := &stubOptimizer{offsets: []float64{20, 0}}
	adapter := NewAdapter(config, stub)

	offsets, err := adapter.ComputeSetpoints(10.0, report(1, 10.0, 8.0))
	if err != nil {
		t.Fatalf("ComputeSetpoints failed: %v", err)
	}

	if stub.calls != 0 {
		t.Errorf("Expected no optimization during warmup, got %d calls", stub.calls)
	}
	if math.Abs(offsets[1]) > tolerance || math.Abs(offsets[2]) > tolerance {
		t.Errorf("Expected zero offsets during warmup, got %v", offsets)
	}
}

func TestAdapterHoldsBetweenUpdates(t *testing.T) {
	config := rowConfig(1988, 2)
	config.Wake.WarmupTime = 0
	config.Wake.UpdateInterval = 10
	stub := &stubOptimizer{offsets: []float64{20, 0}}
	adapter := NewAdapter(config, stub)

	first, err := adapter.ComputeSetpoints(1.0, report(1, 1.0, 8.0))
	if err != nil {
		t.Fatalf("ComputeSetpoints failed: %v", err)
	}
	held, err := adapter.ComputeSetpoints(5.0, report(1, 5.0, 9.0))
	if err != nil {
		t.Fatalf("ComputeSetpoints failed: %v", err)
	}

	if stub.calls != 1 {
		t.Errorf("Expected one optimization inside the interval, got %d calls", stub.calls)
	}
	if math.Abs(first[1]-20) > tolerance || math.Abs(held[1]-20) > tolerance {
		t.Errorf("Expected the hold to keep offsets at 20, got %v then %v", first, held)
	}

	if _, err := adapter.ComputeSetpoints(11.0, report(1, 11.0, 8.0)); err != nil {
		t.Fatalf("ComputeSetpoints failed: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("Expected a second optimization after the interval, got %d calls", stub.calls)
	}
}

func TestAdapterFreestreamIsUpwindWindowMean(t *testing.T) {
	config := rowConfig(1988, 2)
	config.Wake.FreestreamWindow = 3
	stub := &stubOptimizer{offsets: []float64{0, 0}}
	adapter := NewAdapter(config, stub)

	// history fills during the warmup, including the downwind turbine which
	// must not influence the estimate
	winds := []float64{7.0, 8.0, 9.0, 10.0}
	for i, wind := range winds {
		simTime := 57.0 + float64(i)
		reports := map[int]common.Measurement{
			1: {TurbineId: 1, Time: simTime, WindSpeed: wind},
			2: {TurbineId: 2, Time: simTime, WindSpeed: 4.0},
		}
		if _, err := adapter.ComputeSetpoints(simTime, reports); err != nil {
			t.Fatalf("ComputeSetpoints failed: %v", err)
		}
	}

	if stub.calls != 1 {
		t.Fatalf("Expected exactly one optimization, got %d", stub.calls)
	}
	if math.Abs(stub.freestreams[0]-9.0) > tolerance {
		t.Errorf("Expected freestream 9 (mean of 8, 9, 10), got %f", stub.freestreams[0])
	}
}

func TestAdapterFailureKeepsSchedule(t *testing.T) {
	config := rowConfig(1988, 2)
	config.Wake.WarmupTime = 0
	stub := &stubOptimizer{err: errors.New("no convergence")}
	adapter := NewAdapter(config, stub)

	_, err := adapter.ComputeSetpoints(1.0, report(1, 1.0, 8.0))

	var optErr *OptimizationError
	if !errors.As(err, &optErr) {
		t.Fatalf("Expected an optimization error, got %v", err)
	}
	if math.Abs(optErr.Time-1.0) > tolerance {
		t.Errorf("Expected the error to carry t=1, got %f", optErr.Time)
	}

	// the failed update must not start an interval; the next step retries
	stub.err = nil
	stub.offsets = []float64{15, 0}
	offsets, err := adapter.ComputeSetpoints(2.0, report(1, 2.0, 8.0))
	if err != nil {
		t.Fatalf("ComputeSetpoints failed after recovery: %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("Expected a retry on the next step, got %d calls", stub.calls)
	}
	if math.Abs(offsets[1]-15) > tolerance {
		t.Errorf("Expected fresh offsets after recovery, got %v", offsets)
	}
}

func TestAdapterClampsOffsets(t *testing.T) {
	config := rowConfig(1988, 2)
	config.Wake.WarmupTime = 0
	stub := &stubOptimizer{offsets: []float64{40, -40}}
	adapter := NewAdapter(config, stub)

	offsets, err := adapter.ComputeSetpoints(1.0, report(1, 1.0, 8.0))
	if err != nil {
		t.Fatalf("ComputeSetpoints failed: %v", err)
	}

	if math.Abs(offsets[1]-25) > tolerance {
		t.Errorf("Expected the offset clamped to 25, got %f", offsets[1])
	}
	if math.Abs(offsets[2]+25) > tolerance {
		t.Errorf("Expected the offset clamped to -25, got %f", offsets[2])
	}
}

func TestAdapterRejectsBadOptimizerResults(t *testing.T) {
	config := rowConfig(1988, 2)
	config.Wake.WarmupTime = 0

	short := NewAdapter(config, &stubOptimizer{offsets: []float64{5}})
	var optErr *OptimizationError
	if _, err := short.ComputeSetpoints(1.0, report(1, 1.0, 8.0)); !errors.As(err, &optErr) {
		t.Errorf("Expected an error for a short result, got %v", err)
	}

	invalid := NewAdapter(config, &stubOptimizer{offsets: []float64{math.NaN(), 0}})
	if _, err := invalid.ComputeSetpoints(1.0, report(1, 1.0, 8.0)); !errors.As(err, &optErr) {
		t.Errorf("Expected an error for a NaN offset, got %v", err)
	}
}

func TestAdapterNeedsUpwindHistory(t *testing.T) {
	config := rowConfig(1988, 2)
	config.Wake.WarmupTime = 0
	adapter := NewAdapter(config, &stubOptimizer{offsets: []float64{0, 0}})

	// only the downwind turbine reported so far
	_, err := adapter.ComputeSetpoints(1.0, report(2, 1.0, 6.0))

	var optErr *OptimizationError
	if !errors.As(err, &optErr) {
		t.Errorf("Expected an error without upwind history, got %v", err)
	}
}

func TestAdapterTrimsHistory(t *testing.T) {
	config := rowConfig(1988, 2)
	config.Wake.MemorySize = 10
	config.Wake.FreestreamWindow = 10
	adapter := NewAdapter(config, &stubOptimizer{offsets: []float64{0, 0}})

	for i := 0; i < 50; i++ {
		if _, err := adapter.ComputeSetpoints(float64(i), report(1, float64(i), 8.0)); err != nil {
			t.Fatalf("ComputeSetpoints failed: %v", err)
		}
	}

	if got := len(adapter.history[1]); got != 10 {
		t.Errorf("Expected the history trimmed to 10 entries, got %d", got)
	}
}
