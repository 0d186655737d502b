package agent

import (
	"fmt"
	"runtime/debug"

	"github.com/breeze-rmm/inventory-agent/internal/inventory"
	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

// Hooks are optional observers of the agent's cycles. They run
// synchronously on the goroutine running the cycle; a panicking hook is
// logged and does not affect the cycle.
type Hooks struct {
	OnScanStart    func()
	OnScanComplete func(*inventory.Report)
	OnSendStart    func()
	OnSendComplete func(*api.Ack)
	OnDataRequest  func()
}

// CallbackError describes a hook that panicked.
type CallbackError struct {
	Hook  string
	Panic any
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("hook %s panicked: %v", e.Hook, e.Panic)
}

// SetHooks replaces the registered hooks.
func (a *Agent) SetHooks(h Hooks) {
	a.hooksMu.Lock()
	a.hooks = h
	a.hooksMu.Unlock()
}

func (a *Agent) emit(name string, call func(Hooks)) {
	a.hooksMu.RLock()
	h := a.hooks
	a.hooksMu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err := &CallbackError{Hook: name, Panic: r}
			log.Error("hook failed", "error", err, "stack", string(debug.Stack()))
		}
	}()
	call(h)
}
