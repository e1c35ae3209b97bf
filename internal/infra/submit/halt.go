package submit

import (
	"sync"
	"sync/atomic"
)

// HaltSwitch is the single piece of shared mutable state in the gate. It is
// injected, not process-global, so gate instances serving different backends
// never share fate. The halted flag is atomic: a halt issued mid-submission
// either aborts before the network call or lets the in-flight call finish,
// but a torn read is impossible.
type HaltSwitch struct {
	halted atomic.Bool

	mu     sync.Mutex
	reason string
}

func NewHaltSwitch() *HaltSwitch {
	return &HaltSwitch{}
}

func (h *HaltSwitch) Halt(reason string) {
	h.mu.Lock()
	h.reason = reason
	h.mu.Unlock()
	h.halted.Store(true)
}

func (h *HaltSwitch) Resume() {
	h.halted.Store(false)
	h.mu.Lock()
	h.reason = ""
	h.mu.Unlock()
}

func (h *HaltSwitch) Halted() bool {
	return h.halted.Load()
}

func (h *HaltSwitch) State() (bool, string) {
	if !h.halted.Load() {
		return false, ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return true, h.reason
}
