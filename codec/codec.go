// Package codec implements the comma separated float frames exchanged with
// the turbine controllers. Field order and the %016.5f setpoint formatting
// are the wire contract of the ROSCO ZeroMQ interface; measurement payloads
// may arrive NUL padded from the Fortran side and are cleaned before parsing.
package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// Field counts of the two frame layouts. They differ on purpose so one
// layout can never be decoded as the other.
const MeasurementFields = 6
const SetpointFields = 5

// DecodeError describes a frame that could not be parsed. PayloadLen is the
// raw byte count before cleaning, so padding shows up in diagnostics.
type DecodeError struct {
	Channel    string
	PayloadLen int
	Detail     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("undecodable frame on channel %s (%d bytes): %s", e.Channel, e.PayloadLen, e.Detail)
}

// DecodeMeasurement parses a turbine report. The fields are, in order:
// turbine id, status, simulation time, wind speed, yaw angle, power.
func DecodeMeasurement(channel string, payload []byte) (common.Measurement, error) {
	fields, err := splitFields(channel, payload, MeasurementFields)
	if err != nil {
		return common.Measurement{}, err
	}

	if fields[0] != math.Trunc(fields[0]) {
		return common.Measurement{}, &DecodeError{Channel: channel, PayloadLen: len(payload), Detail: fmt.Sprintf("turbine id %v is not an integer", fields[0])}
	}
	if fields[1] != math.Trunc(fields[1]) {
		return common.Measurement{}, &DecodeError{Channel: channel, PayloadLen: len(payload), Detail: fmt.Sprintf("status %v is not an integer", fields[1])}
	}

	return common.Measurement{
		TurbineId: int(fields[0]),
		Status:    int(fields[1]),
		Time:      fields[2],
		WindSpeed: fields[3],
		YawAngle:  fields[4],
		Power:     fields[5],
	}, nil
}

// EncodeMeasurement renders a report the way a turbine controller sends it.
func EncodeMeasurement(m common.Measurement) []byte {
	return formatFrame([]float64{
		float64(m.TurbineId),
		float64(m.Status),
		m.Time,
		m.WindSpeed,
		m.YawAngle,
		m.Power,
	})
}

// DecodeSetpoint parses a controller reply on the turbine side. The fields
// are: simulation time, yaw offset, three pitch offsets.
func DecodeSetpoint(channel string, payload []byte) (common.Setpoint, error) {
	fields, err := splitFields(channel, payload, SetpointFields)
	if err != nil {
		return common.Setpoint{}, err
	}

	return common.Setpoint{
		Time:         fields[0],
		YawOffset:    fields[1],
		PitchOffsets: [3]float64{fields[2], fields[3], fields[4]},
	}, nil
}

func EncodeSetpoint(setpoint common.Setpoint) []byte {
	return formatFrame([]float64{
		setpoint.Time,
		setpoint.YawOffset,
		setpoint.PitchOffsets[0],
		setpoint.PitchOffsets[1],
		setpoint.PitchOffsets[2],
	})
}

func formatFrame(values []float64) []byte {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = fmt.Sprintf("%016.5f", value)
	}
	return []byte(strings.Join(parts, ", "))
}

func splitFields(channel string, payload []byte, want int) ([]float64, error) {
	cleaned := strings.ReplaceAll(string(payload), "\x00", "")
	parts := strings.Split(cleaned, ",")
	if len(parts) != want {
		return nil, &DecodeError{Channel: channel, PayloadLen: len(payload), Detail: fmt.Sprintf("expected %d fields, got %d", want, len(parts))}
	}

	fields := make([]float64, want)
	for i, part := range parts {
		trimmed := strings.TrimSpace(part)
		value, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, &DecodeError{Channel: channel, PayloadLen: len(payload), Detail: fmt.Sprintf("field %d %q is not numeric", i, trimmed)}
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, &DecodeError{Channel: channel, PayloadLen: len(payload), Detail: fmt.Sprintf("field %d %q is not finite", i, trimmed)}
		}
		fields[i] = value
	}

	return fields, nil
}
