package controller

// Channel is one turbine's request reply link. Recv blocks until the turbine
// controller's next frame; Close unblocks a pending Recv. The controller
// answers every received frame exactly once, so the strict alternation of
// the protocol holds as long as implementations deliver frames in order.
type Channel interface {
	Recv() ([]byte, error)
	Send(payload []byte) error
	Close() error
	Name() string
}
