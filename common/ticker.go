package common

import (
	"sync"
	"time"
)

// Ticker invokes a callback immediately and then at a fixed interval until
// stopped. The periodic invocations run one after another on a single
// goroutine, so callbacks never overlap themselves.
type Ticker struct {
	quit    chan bool
	started bool
	mutex   sync.Mutex
}

func (t *Ticker) Start(duration time.Duration, callback func()) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.started {
		return
	}
	t.started = true
	quit := make(chan bool)
	t.quit = quit

	ticker := time.NewTicker(duration)
	go func() {
		callback()
		for {
			select {
			case <-ticker.C:
				callback()
			case <-quit:
				ticker.Stop()
				return
			}
		}
	}()
}

func (t *Ticker) Stop() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.started {
		select {
		case t.quit <- true:
		default:
		}
		close(t.quit)
	}
	t.started = false
}
