// Package audit writes the append-only record of a controller run: every
// received measurement, every dispatched setpoint, every anomaly, and the
// lifecycle events around them. Each line carries the wall clock first and
// the simulation time second so a run can be replayed against the simulator
// output afterwards.
package audit

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger methods are nil safe: a controller without a configured audit file
// keeps a nil *Logger and every call becomes a no-op.
type Logger struct {
	mutex sync.Mutex
	file  *os.File
	out   *bufio.Writer
}

// New opens (or creates) the audit file for appending.
func New(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: file, out: bufio.NewWriter(file)}, nil
}

// NewWriter records to an arbitrary writer, used by tests.
func NewWriter(w io.Writer) *Logger {
	return &Logger{out: bufio.NewWriter(w)}
}

func (l *Logger) Measurement(m common.Measurement) {
	l.write(m.Time, fmt.Sprintf("measurement turbine=%d status=%d wind=%.3f yaw=%.3f power=%.1f",
		m.TurbineId, m.Status, m.WindSpeed, m.YawAngle, m.Power))
}

func (l *Logger) Setpoint(setpoint common.Setpoint) {
	l.write(setpoint.Time, fmt.Sprintf("setpoint turbine=%d yawOffset=%.3f",
		setpoint.TurbineId, setpoint.YawOffset))
}

func (l *Logger) Anomaly(turbineId int, simTime float64, kind string, detail string) {
	l.write(simTime, fmt.Sprintf("anomaly turbine=%d kind=%s detail=%q", turbineId, kind, detail))
}

func (l *Logger) Event(simTime float64, message string) {
	l.write(simTime, "event "+message)
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	err := l.out.Flush()
	if l.file != nil {
		if closeErr := l.file.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// write flushes per line; audit lines must survive a crash.
func (l *Logger) write(simTime float64, message string) {
	if l == nil {
		return
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()

	fmt.Fprintf(l.out, "%s t=%.3f %s\n", time.Now().Format(timeLayout), simTime, message)
	l.out.Flush()
}
