package common

import (
	"sync"
	"time"
)

// Watchdog runs a callback once unless stopped first. The coordination loop
// arms it when a step opens and stops it when the step closes; arming again
// replaces a still pending run. Start and Stop may race from different
// goroutines.
type Watchdog struct {
	quit    chan bool
	started bool
	mutex   sync.Mutex
}

func (w *Watchdog) Start(duration time.Duration, callback func()) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.stopLocked()
	w.started = true
	quit := make(chan bool)
	w.quit = quit

	timer := time.NewTimer(duration)

	go func() {
		select {
		case <-timer.C:
			go callback()
		case <-quit:
			if !timer.Stop() {
				<-timer.C
			}
		}
	}()
}

func (w *Watchdog) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.stopLocked()
}

func (w *Watchdog) stopLocked() {
	if w.started {
		select {
		case w.quit <- true:
		default:
		}
		close(w.quit)
	}
	w.started = false
}
