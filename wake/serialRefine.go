package wake

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// Grid sizes of the two optimization passes per turbine.
const coarsePoints = 5
const finePoints = 9

// SerialRefine is the shipped yaw optimizer, a serial refine scheme over the
// Gaussian wake engine: turbines are visited from upwind to downwind, each
// visit scans a coarse offset grid with all other offsets held fixed and then
// refines around the best coarse candidate. Deterministic for a given farm
// and freestream speed.
type SerialRefine struct {
	config common.WakeConfig
	model  *gauss
}

func NewSerialRefine(config common.WakeConfig, turbines []common.TurbineConfig) *SerialRefine {
	return &SerialRefine{config: config, model: newGauss(config, turbines)}
}

// OptimizeYaw returns one yaw offset per configured turbine, indexed like the
// turbine list the optimizer was built with.
func (s *SerialRefine) OptimizeYaw(freestream float64) ([]float64, error) {
	if freestream <= 0 || math.IsNaN(freestream) || math.IsInf(freestream, 0) {
		return nil, fmt.Errorf("freestream wind speed %f is not usable", freestream)
	}

	offsets := make([]float64, len(s.model.order))
	spacing := (s.config.MaxYaw - s.config.MinYaw) / float64(coarsePoints-1)

	for _, turbine := range s.model.order {
		coarse := s.bestOffset(freestream, offsets, turbine, s.config.MinYaw, s.config.MaxYaw, coarsePoints)
		low := math.Max(s.config.MinYaw, coarse-spacing)
		high := math.Min(s.config.MaxYaw, coarse+spacing)
		offsets[turbine] = s.bestOffset(freestream, offsets, turbine, low, high, finePoints)
	}

	return offsets, nil
}

func (s *SerialRefine) bestOffset(freestream float64, offsets []float64, turbine int, low float64, high float64, points int) float64 {
	trial := make([]float64, len(offsets))
	copy(trial, offsets)

	candidates := make([]float64, points)
	powers := make([]float64, points)
	for i := 0; i < points; i++ {
		candidates[i] = low + (high-low)*float64(i)/float64(points-1)
		trial[turbine] = candidates[i]
		powers[i] = s.model.farmPower(freestream, trial)
	}

	return candidates[floats.MaxIdx(powers)]
}
