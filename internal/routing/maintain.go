package routing

import (
	"context"
	"time"
)

// StartMaintenance re-routes this application's streams into the mix sink
// every MaintainInterval until StopMaintenance, Cleanup or ctx ends it.
// Calling it while a loop is running does nothing.
func (c *Controller) StartMaintenance(ctx context.Context) {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.loopDone != nil {
		select {
		case <-c.loopDone:
			// previous loop ended with its context
		default:
			return
		}
	}

	c.stop = make(chan struct{})
	c.loopDone = make(chan struct{})
	go c.maintain(ctx, c.stop, c.loopDone)

	c.log.Debug("Routing maintenance started", "interval", c.cfg.MaintainInterval)
}

// StopMaintenance raises the stop signal and waits for the loop to exit.
func (c *Controller) StopMaintenance() {
	c.loopMu.Lock()
	stop, done := c.stop, c.loopDone
	c.stop, c.loopDone = nil, nil
	c.loopMu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done

	c.log.Debug("Routing maintenance stopped")
}

func (c *Controller) Maintaining() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.loopDone == nil {
		return false
	}
	select {
	case <-c.loopDone:
		return false
	default:
		return true
	}
}

func (c *Controller) maintain(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.MaintainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		rctx, cancel := context.WithTimeout(ctx, c.cfg.CommandTimeout)
		n, err := c.RouteApplicationAudio(rctx)
		cancel()

		if err != nil {
			c.log.Debug("Re-route failed", "err", err)
			continue
		}
		if n > 0 {
			c.log.Debug("Re-routed streams", "count", n)
		}
	}
}
