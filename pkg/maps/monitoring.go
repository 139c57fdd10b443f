package maps

import (
	"sync"
	"time"
)

// MonitoringHooks defines callbacks invoked around provider requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after the request completes
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called after waiting on a service rate limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)
}

var (
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}
