// Package zmq carries the farm protocol over ZeroMQ request reply sockets,
// one reply socket per turbine. The turbine controllers dial in as REQ
// clients, which pins the strict alternation the coordination loop relies
// on to the wire.
package zmq

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/go-zeromq/zmq4"

	"github.com/SUDOCO-EU/windfarmcontroller-zeromq-demo/common"
)

// Channel is one end of a turbine link.
type Channel struct {
	name   string
	socket zmq4.Socket
	closed chan struct{}
	once   sync.Once
}

func newChannel(name string, socket zmq4.Socket) *Channel {
	return &Channel{name: name, socket: socket, closed: make(chan struct{})}
}

// Recv blocks for the peer's next frame. It returns as soon as the channel
// closes, without waiting for the socket teardown.
func (c *Channel) Recv() ([]byte, error) {
	frames := make(chan []byte, 1)
	failed := make(chan error, 1)
	go func() {
		msg, err := c.socket.Recv()
		if err != nil {
			failed <- err
			return
		}
		frames <- msg.Bytes()
	}()

	select {
	case payload := <-frames:
		return payload, nil
	case err := <-failed:
		return nil, err
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

func (c *Channel) Send(payload []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	return c.socket.Send(zmq4.NewMsg(payload))
}

func (c *Channel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.socket.Close()
	})
	return err
}

func (c *Channel) Name() string {
	return c.name
}

// Addr reports the bound endpoint. With a port 0 address the kernel picks
// the port, and this is where clients learn it.
func (c *Channel) Addr() string {
	addr := c.socket.Addr()
	if addr == nil {
		return ""
	}
	return "tcp://" + addr.String()
}

// Connector owns the farm's listening sockets.
type Connector struct {
	channels map[int]*Channel
}

// Open binds one reply socket per configured turbine. On any bind failure
// the already bound sockets are closed again.
func Open(ctx context.Context, turbines []common.TurbineConfig) (*Connector, error) {
	connector := &Connector{channels: make(map[int]*Channel, len(turbines))}

	for _, turbine := range turbines {
		socket := zmq4.NewRep(ctx)
		if err := socket.Listen(turbine.Address); err != nil {
			socket.Close()
			connector.Close()
			return nil, fmt.Errorf("bind %s for turbine %d: %w", turbine.Address, turbine.Id, err)
		}
		log.Printf("zmq - listening on %s for turbine %d", turbine.Address, turbine.Id)
		connector.channels[turbine.Id] = newChannel(fmt.Sprintf("%s-%d", turbine.Name, turbine.Id), socket)
	}

	return connector, nil
}

func (c *Connector) Channel(id int) *Channel {
	return c.channels[id]
}

func (c *Connector) Channels() map[int]*Channel {
	return c.channels
}

func (c *Connector) Close() {
	for _, channel := range c.channels {
		channel.Close()
	}
}

// Dial connects the turbine side of a link. The simulator and the tests use
// it; a real deployment has ROSCO dialing instead.
func Dial(ctx context.Context, name string, endpoint string) (*Channel, error) {
	socket := zmq4.NewReq(ctx)
	if err := socket.Dial(endpoint); err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return newChannel(name, socket), nil
}
