// Command turbinesim drives a farm controller the way the embedded turbine
// controllers would: one request/reply client per configured turbine, reporting
// in lockstep and slewing toward the returned setpoints. It fakes frames and
// pacing, not aerodynamics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/codec"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/zmq"
)

// yawTimeConstant is the fake nacelle's first order yaw lag, simulated seconds.
const yawTimeConstant = 5.0

func main() {
	log.Println("starting turbine simulator")

	var configFile string
	var duration float64
	var timestep float64
	var pace float64
	flag.StringVar(&configFile, "config", "farm.yaml", "farm configuration file")
	flag.Float64Var(&duration, "duration", 120.0, "simulated seconds before disconnecting")
	flag.Float64Var(&timestep, "timestep", 1.0, "simulated seconds per step")
	flag.Float64Var(&pace, "pace", 0.0, "wall clock seconds per step, 0 runs free")
	flag.Parse()

	config, err := common.LoadConfig(configFile)
	if err != nil {
		log.Fatalln(err)
	}
	if timestep <= 0 {
		log.Fatalln("timestep must be positive")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("interrupted, stopping turbines")
		cancel()
	}()

	var wg sync.WaitGroup
	for _, turbine := range config.Farm.Turbines {
		wg.Add(1)
		go func(turbine common.TurbineConfig) {
			defer wg.Done()
			if err := run(ctx, config, turbine, duration, timestep, pace); err != nil {
				log.Printf("turbine %d - %v", turbine.Id, err)
			}
		}(turbine)
	}

	wg.Wait()
	log.Println("all turbines done")
}

func run(ctx context.Context, config *common.Config, turbine common.TurbineConfig, duration float64, timestep float64, pace float64) error {
	// the configured address is the controller's bind side; a wildcard host
	// there means localhost here
	endpoint := strings.Replace(turbine.Address, "*", "127.0.0.1", 1)
	channel, err := zmq.Dial(ctx, fmt.Sprintf("%s-%d", turbine.Name, turbine.Id), endpoint)
	if err != nil {
		return err
	}
	defer channel.Close()

	yawOffset := 0.0
	for i := 1; float64(i)*timestep <= duration; i++ {
		simTime := float64(i) * timestep
		wind := windAt(turbine, simTime)

		measurement := common.Measurement{
			TurbineId: turbine.Id,
			Status:    common.STATUS_RUNNING,
			Time:      simTime,
			WindSpeed: wind,
			YawAngle:  config.Wake.WindDirection - yawOffset,
			Power:     powerAt(config, wind, yawOffset),
		}
		if err := channel.Send(codec.EncodeMeasurement(measurement)); err != nil {
			return err
		}

		payload, err := channel.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		setpoint, err := codec.DecodeSetpoint(channel.Name(), payload)
		if err != nil {
			return err
		}
		// the nacelle slews toward the commanded offset with a first order
		// lag instead of snapping, like a rate limited yaw drive
		yawOffset += (setpoint.YawOffset - yawOffset) * (1 - math.Exp(-timestep/yawTimeConstant))

		if pace > 0 {
			select {
			case <-time.After(time.Duration(pace * float64(time.Second))):
			case <-ctx.Done():
				return nil
			}
		}
	}

	goodbye := common.Measurement{TurbineId: turbine.Id, Status: common.STATUS_DISCONNECT, Time: duration}
	if err := channel.Send(codec.EncodeMeasurement(goodbye)); err != nil {
		return err
	}
	if _, err := channel.Recv(); err != nil && ctx.Err() == nil {
		return err
	}

	log.Printf("turbine %d - disconnected after %.0f simulated seconds", turbine.Id, duration)
	return nil
}

// windAt fakes a shared slow gust plus a little per-turbine texture so the
// freestream estimate has something to average.
func windAt(turbine common.TurbineConfig, simTime float64) float64 {
	gust := 0.5 * math.Sin(2*math.Pi*simTime/60.0)
	texture := 0.2 * math.Sin(0.37*simTime+float64(turbine.Id))
	return 8.0 + gust + texture
}

func powerAt(config *common.Config, wind float64, yawOffset float64) float64 {
	wake := config.Wake
	area := math.Pi * wake.RotorDiameter * wake.RotorDiameter / 4
	loss := math.Pow(math.Abs(math.Cos(yawOffset*math.Pi/180)), wake.YawPowerExponent)
	return 0.5 * wake.AirDensity * area * wake.PowerCoefficient * loss * wind * wind * wind
}
