package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

const connectTimeout = 10 * time.Second

// Connector mirrors the controller's step summaries, anomalies and liveness
// heartbeats onto an MQTT status bus for operator dashboards. It only
// publishes; the control loop itself never depends on the broker.
type Connector struct {
	farmId         string
	cliCfg         autopaho.ClientConfig
	mqttConnection *autopaho.ConnectionManager
	router         paho.Router
}

func NewConnector(config *common.Config) (*Connector, error) {
	u, err := url.Parse(config.Mqtt.Url)
	if err != nil {
		return nil, err
	}

	connector := Connector{farmId: config.Farm.Id, router: paho.NewStandardRouter()}

	connector.cliCfg = autopaho.ClientConfig{
		BrokerUrls:     []*url.URL{u},
		KeepAlive:      20,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) { log.Println("mqtt connection up") },
		OnConnectError: func(err error) { log.Printf("error whilst attempting connection: %s", err) },
		ClientConfig: paho.ClientConfig{
			ClientID:      fmt.Sprintf("%s-controller", config.Farm.Id),
			Router:        connector.router,
			OnClientError: func(err error) { log.Printf("mqtt client error: %s", err) },
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					log.Printf("server requested disconnect: %s", d.Properties.ReasonString)
				} else {
					log.Printf("server requested disconnect; reason code: %d", d.ReasonCode)
				}
			},
		},
	}

	return &connector, nil
}

func (c *Connector) Open(ctx context.Context) error {
	connection, err := autopaho.NewConnection(ctx, c.cliCfg)
	if err != nil {
		return err
	}

	// keep the connection for Close even when the broker never shows up
	c.mqttConnection = connection

	awaitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	return connection.AwaitConnection(awaitCtx)
}

func (c *Connector) Close() {
	if c.mqttConnection != nil {
		c.mqttConnection.Disconnect(context.Background())
	}
}

func (c *Connector) PublishStepSummary(ctx context.Context, summary common.StepSummary) error {
	payload, _ := json.Marshal(summary)

	_, err := c.mqttConnection.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   fmt.Sprintf("%s/%s", c.farmId, step_topic),
		Payload: payload,
	})

	return err
}

func (c *Connector) PublishAnomaly(ctx context.Context, anomaly common.Anomaly) error {
	payload, _ := json.Marshal(anomaly)

	_, err := c.mqttConnection.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   fmt.Sprintf("%s/%s", c.farmId, anomaly_topic),
		Payload: payload,
	})

	return err
}

func (c *Connector) PublishHeartbeat(ctx context.Context, heartbeat common.Heartbeat) error {
	payload, _ := json.Marshal(heartbeat)

	_, err := c.mqttConnection.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   fmt.Sprintf("%s/%s", c.farmId, heartbeat_topic),
		Payload: payload,
	})

	return err
}

const step_topic = "step"
const anomaly_topic = "anomaly"
const heartbeat_topic = "heartbeat"
