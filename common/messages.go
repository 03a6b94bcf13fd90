package common

import (
	"time"
)

// Turbine status codes carried in the measurement frame. A turbine controller
// sends STATUS_DISCONNECT as its final message of a simulation run.
const STATUS_RUNNING = 1
const STATUS_DISCONNECT = -1

// Measurement is one turbine's state report for one simulation step.
type Measurement struct {
	TurbineId int
	Status    int
	Time      float64
	WindSpeed float64
	YawAngle  float64
	Power     float64
}

// Setpoint is the farm controller's reply for one turbine and one step. The
// pitch offsets are part of the wire contract with the turbine controllers;
// the shipped optimizer leaves them at zero.
type Setpoint struct {
	TurbineId    int
	Time         float64
	YawOffset    float64
	PitchOffsets [3]float64
}

const ANOMALY_MALFORMED = "malformed"
const ANOMALY_DUPLICATE = "duplicate"
const ANOMALY_LATE = "late"
const ANOMALY_STALL = "stall"
const ANOMALY_CHANNEL = "channel"
const ANOMALY_OPTIMIZATION = "optimization"
const ANOMALY_UNEXPECTED_ID = "unexpectedId"

// StepSummary is published on the operator status bus after every closed
// control step.
type StepSummary struct {
	Id         string          `json:"id"`
	FarmId     string          `json:"farmId"`
	Step       int             `json:"step"`
	Time       float64         `json:"time"`
	YawOffsets map[int]float64 `json:"yawOffsets"`
	Missing    []int           `json:"missing,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Anomaly mirrors an audit anomaly onto the status bus. TurbineId is zero for
// farm-wide anomalies such as optimization failures.
type Anomaly struct {
	Id        string    `json:"id"`
	FarmId    string    `json:"farmId"`
	TurbineId int       `json:"turbineId,omitempty"`
	Time      float64   `json:"time"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Heartbeat is published on the operator status bus at a fixed wall clock
// interval so operators can tell a stalled simulation from a dead controller.
type Heartbeat struct {
	Id           string    `json:"id"`
	FarmId       string    `json:"farmId"`
	Steps        int       `json:"steps"`
	LastStepTime float64   `json:"lastStepTime"`
	Connected    int       `json:"connected"`
	Timestamp    time.Time `json:"timestamp"`
}
