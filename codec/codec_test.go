package codec

import (
	"errors"
	"math"
	"testing"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

const tolerance = .00001

func TestDecodeMeasurement(t *testing.T) {
	payload := []byte("2, 1, 100.0, 8.25, -3.5, 9446699.0\x00\x00")

	m, err := DecodeMeasurement("WT2", payload)
	if err != nil {
		t.Fatalf("DecodeMeasurement failed: %v", err)
	}

	if m.TurbineId != 2 {
		t.Errorf("Expected turbine id 2, got %d", m.TurbineId)
	}
	if m.Status != common.STATUS_RUNNING {
		t.Errorf("Expected running status, got %d", m.Status)
	}
	if math.Abs(m.Time-100.0) > tolerance {
		t.Errorf("Expected time 100, got %f", m.Time)
	}
	if math.Abs(m.WindSpeed-8.25) > tolerance {
		t.Errorf("Expected wind speed 8.25, got %f", m.WindSpeed)
	}
	if math.Abs(m.YawAngle+3.5) > tolerance {
		t.Errorf("Expected yaw angle -3.5, got %f", m.YawAngle)
	}
	if math.Abs(m.Power-9446699.0) > tolerance {
		t.Errorf("Expected power 9446699, got %f", m.Power)
	}
}

func TestDecodeMeasurementWrongFieldCount(t *testing.T) {
	payload := []byte("1, 1, 100.0, 8.0")

	_, err := DecodeMeasurement("WT1", payload)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected a decode error, got %v", err)
	}
	if decodeErr.Channel != "WT1" {
		t.Errorf("Expected channel WT1 in the error, got %s", decodeErr.Channel)
	}
	if decodeErr.PayloadLen != len(payload) {
		t.Errorf("Expected payload length %d, got %d", len(payload), decodeErr.PayloadLen)
	}
}

func TestDecodeMeasurementNotNumeric(t *testing.T) {
	payload := []byte("1, 1, 100.0, eight, 0.0, 0.0")

	var decodeErr *DecodeError
	if _, err := DecodeMeasurement("WT1", payload); !errors.As(err, &decodeErr) {
		t.Errorf("Expected a decode error, got %v", err)
	}
}

func TestDecodeMeasurementNotFinite(t *testing.T) {
	payload := []byte("1, 1, 100.0, NaN, 0.0, 0.0")

	var decodeErr *DecodeError
	if _, err := DecodeMeasurement("WT1", payload); !errors.As(err, &decodeErr) {
		t.Errorf("Expected a decode error for NaN, got %v", err)
	}
}

func TestDecodeMeasurementFractionalId(t *testing.T) {
	payload := []byte("1.5, 1, 100.0, 8.0, 0.0, 0.0")

	var decodeErr *DecodeError
	if _, err := DecodeMeasurement("WT1", payload); !errors.As(err, &decodeErr) {
		t.Errorf("Expected a decode error for a fractional id, got %v", err)
	}
}

func TestDecodeMeasurementEmptyPayload(t *testing.T) {
	var decodeErr *DecodeError
	if _, err := DecodeMeasurement("WT1", []byte{}); !errors.As(err, &decodeErr) {
		t.Errorf("Expected a decode error for an empty payload, got %v", err)
	}
}

func TestEncodeSetpointFormat(t *testing.T) {
	setpoint := common.Setpoint{TurbineId: 1, Time: 100.0, YawOffset: -15.0}

	got := string(EncodeSetpoint(setpoint))
	want := "0000000100.00000, -000000015.00000, 0000000000.00000, 0000000000.00000, 0000000000.00000"

	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestSetpointRoundTrip(t *testing.T) {
	setpoint := common.Setpoint{Time: 42.5, YawOffset: 17.25, PitchOffsets: [3]float64{0.1, 0.2, 0.3}}

	decoded, err := DecodeSetpoint("WT1", EncodeSetpoint(setpoint))
	if err != nil {
		t.Fatalf("DecodeSetpoint failed: %v", err)
	}

	if math.Abs(decoded.Time-42.5) > tolerance {
		t.Errorf("Expected time 42.5, got %f", decoded.Time)
	}
	if math.Abs(decoded.YawOffset-17.25) > tolerance {
		t.Errorf("Expected yaw offset 17.25, got %f", decoded.YawOffset)
	}
	if math.Abs(decoded.PitchOffsets[2]-0.3) > tolerance {
		t.Errorf("Expected third pitch offset 0.3, got %f", decoded.PitchOffsets[2])
	}
}

func TestSetpointNeverDecodesAsMeasurement(t *testing.T) {
	payload := EncodeSetpoint(common.Setpoint{Time: 100.0, YawOffset: 10.0})

	var decodeErr *DecodeError
	if _, err := DecodeMeasurement("WT1", payload); !errors.As(err, &decodeErr) {
		t.Errorf("Expected a setpoint frame to be rejected as a measurement, got %v", err)
	}
}

func TestMeasurementNeverDecodesAsSetpoint(t *testing.T) {
	payload := EncodeMeasurement(common.Measurement{TurbineId: 1, Status: 1, Time: 100.0, WindSpeed: 8.0})

	var decodeErr *DecodeError
	if _, err := DecodeSetpoint("WT1", payload); !errors.As(err, &decodeErr) {
		t.Errorf("Expected a measurement frame to be rejected as a setpoint, got %v", err)
	}
}
