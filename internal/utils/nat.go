package utils

import (
	"context"
	"sync"
	"time"

	natlib "github.com/libp2p/go-nat"
)

const (
	portMappingLifetime = 10 * time.Minute
	portMappingRefresh  = 5 * time.Minute
	natCallTimeout      = 5 * time.Second
)

// PortForwarder keeps a TCP mapping for the API port alive on a UPnP/NAT-PMP
// gateway while the server runs.
type PortForwarder struct {
	port        int
	description string
	log         *Logger

	mu           sync.Mutex
	nat          natlib.NAT
	externalPort int
	lastErr      error
	stop         chan struct{}
	done         chan struct{}
}

// NewPortForwarder prepares a forwarder for internalPort. Call Start to map it.
func NewPortForwarder(internalPort int, description string, log *Logger) *PortForwarder {
	return &PortForwarder{port: internalPort, description: description, log: log}
}

// Start discovers the gateway and refreshes the mapping until Stop.
func (pf *PortForwarder) Start(ctx context.Context) {
	if pf == nil || pf.port <= 0 {
		return
	}
	pf.mu.Lock()
	if pf.stop != nil {
		pf.mu.Unlock()
		return
	}
	pf.stop = make(chan struct{})
	pf.done = make(chan struct{})
	stop, done := pf.stop, pf.done
	pf.mu.Unlock()

	go func() {
		defer close(done)
		pf.refresh(ctx)
		ticker := time.NewTicker(portMappingRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				pf.refresh(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the refresh loop and removes the mapping (best-effort).
func (pf *PortForwarder) Stop() {
	if pf == nil {
		return
	}
	pf.mu.Lock()
	stop, done, n := pf.stop, pf.done, pf.nat
	pf.stop = nil
	pf.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), natCallTimeout)
	defer cancel()
	if err := n.DeletePortMapping(ctx, "tcp", pf.port); err != nil {
		pf.log.Write("API port forward removal failed: " + err.Error())
		return
	}
	pf.log.Write("API port forward mapping removed")
}

// Status returns the external port currently mapped and the last error seen.
func (pf *PortForwarder) Status() (int, error) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.externalPort, pf.lastErr
}

func (pf *PortForwarder) refresh(ctx context.Context) {
	n, err := pf.gateway(ctx)
	if err == nil {
		c, cancel := context.WithTimeout(ctx, natCallTimeout)
		var ext int
		ext, err = n.AddPortMapping(c, "tcp", pf.port, pf.description, portMappingLifetime)
		cancel()
		if err == nil {
			pf.mu.Lock()
			pf.externalPort, pf.lastErr = ext, nil
			pf.mu.Unlock()
			pf.log.Writef("API port forward active: internal TCP %d -> external TCP %d", pf.port, ext)
			return
		}
	}
	pf.mu.Lock()
	pf.externalPort, pf.lastErr = 0, err
	pf.mu.Unlock()
	pf.log.Write("API port forward attempt failed: " + err.Error())
}

func (pf *PortForwarder) gateway(ctx context.Context) (natlib.NAT, error) {
	pf.mu.Lock()
	n := pf.nat
	pf.mu.Unlock()
	if n != nil {
		return n, nil
	}
	c, cancel := context.WithTimeout(ctx, natCallTimeout)
	defer cancel()
	n, err := natlib.DiscoverGateway(c)
	if err != nil {
		return nil, err
	}
	pf.mu.Lock()
	pf.nat = n
	pf.mu.Unlock()
	return n, nil
}
