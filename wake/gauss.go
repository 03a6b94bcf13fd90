package wake

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// gauss is the engineering wake engine behind the shipped optimizer: a
// Gaussian velocity deficit with a yaw-induced deflection of the wake
// centerline. Deficits from multiple wakes superpose as the root of the sum
// of squares; turbine power follows the cos^pP yaw loss law. It is a
// deterministic stand-in for a full flow solver, good enough to rank yaw
// offset candidates.
type gauss struct {
	config common.WakeConfig

	// rotor coordinates rotated into the wind frame
	downwind  []float64
	crosswind []float64
	order     []int // turbine indices sorted upwind to downwind
}

func newGauss(config common.WakeConfig, turbines []common.TurbineConfig) *gauss {
	g := &gauss{
		config:    config,
		downwind:  make([]float64, len(turbines)),
		crosswind: make([]float64, len(turbines)),
		order:     make([]int, len(turbines)),
	}

	// wind direction is meteorological (degrees the wind comes from);
	// 270 deg turns east/north coordinates into pure downwind distance
	theta := (270.0 - config.WindDirection) * math.Pi / 180.0
	sin, cos := math.Sin(theta), math.Cos(theta)

	for i, turbine := range turbines {
		g.downwind[i] = turbine.X*cos + turbine.Y*sin
		g.crosswind[i] = -turbine.X*sin + turbine.Y*cos
		g.order[i] = i
	}
	sort.SliceStable(g.order, func(a, b int) bool {
		return g.downwind[g.order[a]] < g.downwind[g.order[b]]
	})

	return g
}

// effectiveSpeeds returns the rotor wind speed at every turbine for the given
// freestream speed and yaw offsets (degrees).
func (g *gauss) effectiveSpeeds(freestream float64, yaw []float64) []float64 {
	n := len(g.downwind)
	speeds := make([]float64, n)

	diameter := g.config.RotorDiameter
	ct := g.config.ThrustCoefficient
	k := g.config.WakeDecay

	// initial wake width per Bastankhah, from the thrust coefficient
	beta := (1 + math.Sqrt(1-ct)) / (2 * math.Sqrt(1-ct))
	epsilon := 0.2 * math.Sqrt(beta)

	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			distance := g.downwind[i] - g.downwind[j]
			if distance <= 0 {
				continue
			}

			gamma := yaw[j] * math.Pi / 180.0
			sigma := epsilon*diameter + k*distance

			arg := 1 - ct*math.Cos(gamma)/(8*math.Pow(sigma/diameter, 2))
			if arg < 0 {
				arg = 0
			}
			centerline := 1 - math.Sqrt(arg)

			offset := g.crosswind[i] - (g.crosswind[j] + g.deflection(gamma, distance))
			deficit := centerline * math.Exp(-offset*offset/(2*sigma*sigma))
			sum += deficit * deficit
		}

		combined := math.Min(1, math.Sqrt(sum))
		speeds[i] = freestream * (1 - combined)
	}

	return speeds
}

// deflection is the crosswind displacement of the wake centerline a yawed
// rotor causes at the given downwind distance (Jimenez skew angle, decayed
// and integrated over the travel).
func (g *gauss) deflection(gamma float64, distance float64) float64 {
	diameter := g.config.RotorDiameter
	k := g.config.WakeDecay

	skew := 0.5 * math.Pow(math.Cos(gamma), 2) * math.Sin(gamma) * g.config.ThrustCoefficient
	return skew * (diameter / (2 * k)) * (1 - 1/(1+2*k*distance/diameter))
}

// farmPower is the summed electrical power of the farm under the given
// freestream speed and yaw offsets.
func (g *gauss) farmPower(freestream float64, yaw []float64) float64 {
	speeds := g.effectiveSpeeds(freestream, yaw)

	area := math.Pi * math.Pow(g.config.RotorDiameter/2, 2)
	powers := make([]float64, len(speeds))
	for i, speed := range speeds {
		loss := math.Pow(math.Cos(yaw[i]*math.Pi/180.0), g.config.YawPowerExponent)
		powers[i] = 0.5 * g.config.AirDensity * area * g.config.PowerCoefficient * math.Pow(speed, 3) * loss
	}

	return floats.Sum(powers)
}
