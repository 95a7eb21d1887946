package bridge

import "sync"

// HandlerTable maps controller device ids to their handlers. Lookups are
// frequent and concurrent with each other; registration happens only while
// the bridge comes online or a device appears, so a read-write mutex fits.
type HandlerTable struct {
	mu       sync.RWMutex
	handlers map[string]*Handler
}

// NewHandlerTable creates an empty table.
func NewHandlerTable() *HandlerTable {
	return &HandlerTable{handlers: make(map[string]*Handler)}
}

// Register adds or replaces the handler for a device id.
func (t *HandlerTable) Register(deviceID string, h *Handler) {
	t.mu.Lock()
	t.handlers[deviceID] = h
	t.mu.Unlock()
}

// Remove deletes the handler for a device id.
func (t *HandlerTable) Remove(deviceID string) {
	t.mu.Lock()
	delete(t.handlers, deviceID)
	t.mu.Unlock()
}

// Lookup returns the handler for a device id.
func (t *HandlerTable) Lookup(deviceID string) (*Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[deviceID]
	return h, ok
}

// Len returns the number of registered handlers.
func (t *HandlerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handlers)
}

// DeviceIDs lists the registered device ids.
func (t *HandlerTable) DeviceIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.handlers))
	for id := range t.handlers {
		ids = append(ids, id)
	}
	return ids
}
