package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/audit"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/controller"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/mqtt"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/wake"
	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/zmq"
)

// Exit codes: 0 clean run, 1 configuration, 2 transport, 3 optimization.
const (
	exitConfiguration = 1
	exitTransport     = 2
	exitOptimization  = 3
)

func main() {
	log.Println("starting farm controller")

	var configFile string
	flag.StringVar(&configFile, "config", "farm.yaml", "farm configuration file")
	flag.Parse()

	config, err := common.LoadConfig(configFile)
	if err != nil {
		log.Println(err)
		os.Exit(exitConfiguration)
	}

	var auditLog *audit.Logger
	if config.Audit.File != "" {
		if auditLog, err = audit.New(config.Audit.File); err != nil {
			log.Println(err)
			os.Exit(exitConfiguration)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var status controller.StatusPublisher
	var mqttConnector *mqtt.Connector
	if config.Mqtt.Url != "" {
		if mqttConnector, err = mqtt.NewConnector(config); err != nil {
			log.Println(err)
			auditLog.Close()
			os.Exit(exitConfiguration)
		}
		if err = mqttConnector.Open(ctx); err != nil {
			log.Println("status bus unreachable, continuing without it:", err)
			mqttConnector.Close()
			mqttConnector = nil
		} else {
			status = mqttConnector
		}
	}

	connector, err := zmq.Open(ctx, config.Farm.Turbines)
	if err != nil {
		log.Println(err)
		if mqttConnector != nil {
			mqttConnector.Close()
		}
		auditLog.Close()
		os.Exit(exitTransport)
	}

	channels := make(map[int]controller.Channel, len(config.Farm.Turbines))
	for id, channel := range connector.Channels() {
		channels[id] = channel
	}

	computer := wake.NewAdapter(config, wake.NewSerialRefine(config.Wake, config.Farm.Turbines))

	farmController, err := controller.NewController(config, channels, computer, status, auditLog)
	if err != nil {
		log.Println(err)
		connector.Close()
		if mqttConnector != nil {
			mqttConnector.Close()
		}
		auditLog.Close()
		os.Exit(exitConfiguration)
	}
	if err = farmController.Start(); err != nil {
		log.Println(err)
		connector.Close()
		if mqttConnector != nil {
			mqttConnector.Close()
		}
		auditLog.Close()
		os.Exit(exitConfiguration)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("received %s, shutting down", sig)
		farmController.Stop()
		<-farmController.Done()
	case <-farmController.Done():
	}

	runErr := farmController.Err()
	log.Printf("run finished, %d step(s) completed", farmController.CompletedSteps())
	if runErr != nil {
		log.Println("run failed:", runErr)
	}

	connector.Close()
	if mqttConnector != nil {
		mqttConnector.Close()
	}
	auditLog.Close()
	cancel()

	switch {
	case runErr == nil:
	case errors.Is(runErr, controller.ErrOptimization):
		os.Exit(exitOptimization)
	default:
		os.Exit(exitTransport)
	}
}
