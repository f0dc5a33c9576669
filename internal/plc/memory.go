package plc

import (
	"context"
	"fmt"
	"sync"
)

// MemBus is an in-memory Bus for tests. Reads and writes hit a plain map;
// an optional OnWrite hook lets a test script the PLC side of a handshake
// (flip the ack line when the strobe goes up, and so on). The hook runs
// outside the lock so it may call back into the bus.
type MemBus struct {
	mu       sync.Mutex
	bools    map[string]bool
	strings  map[string]string
	int32s   map[string]int32
	failNode map[string]error

	// OnWrite, if set, is called after every successful write with the
	// node id and the value written.
	OnWrite func(nodeID string, value interface{})
}

// NewMemBus returns an empty in-memory bus. Unwritten bool registers read
// false, strings read "", Int32s read 0.
func NewMemBus() *MemBus {
	return &MemBus{
		bools:    make(map[string]bool),
		strings:  make(map[string]string),
		int32s:   make(map[string]int32),
		failNode: make(map[string]error),
	}
}

// FailNode makes every access to the node return err. Pass nil to clear.
func (b *MemBus) FailNode(nodeID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failNode, nodeID)
		return
	}
	b.failNode[nodeID] = err
}

// SetBool sets a register directly, bypassing the OnWrite hook. Tests use
// this to model PLC-side line changes.
func (b *MemBus) SetBool(nodeID string, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bools[nodeID] = v
}

// SetString sets a string register directly, bypassing the OnWrite hook.
func (b *MemBus) SetString(nodeID, v string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.strings[nodeID] = v
}

// SetInt32 sets an Int32 register directly, bypassing the OnWrite hook.
func (b *MemBus) SetInt32(nodeID string, v int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.int32s[nodeID] = v
}

// Bool returns the current value of a bool register.
func (b *MemBus) Bool(nodeID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bools[nodeID]
}

// String returns the current value of a string register.
func (b *MemBus) String(nodeID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.strings[nodeID]
}

func (b *MemBus) checkFail(nodeID string) error {
	if err, ok := b.failNode[nodeID]; ok {
		return err
	}
	return nil
}

// ReadBool implements Bus.
func (b *MemBus) ReadBool(ctx context.Context, nodeID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkFail(nodeID); err != nil {
		return false, fmt.Errorf("read %s: %w", nodeID, err)
	}
	return b.bools[nodeID], nil
}

// WriteBool implements Bus.
func (b *MemBus) WriteBool(ctx context.Context, nodeID string, value bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if err := b.checkFail(nodeID); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("write %s: %w", nodeID, err)
	}
	b.bools[nodeID] = value
	hook := b.OnWrite
	b.mu.Unlock()
	if hook != nil {
		hook(nodeID, value)
	}
	return nil
}

// ReadString implements Bus.
func (b *MemBus) ReadString(ctx context.Context, nodeID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkFail(nodeID); err != nil {
		return "", fmt.Errorf("read %s: %w", nodeID, err)
	}
	return b.strings[nodeID], nil
}

// WriteString implements Bus.
func (b *MemBus) WriteString(ctx context.Context, nodeID string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if err := b.checkFail(nodeID); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("write %s: %w", nodeID, err)
	}
	b.strings[nodeID] = value
	hook := b.OnWrite
	b.mu.Unlock()
	if hook != nil {
		hook(nodeID, value)
	}
	return nil
}

// ReadInt32 implements Bus.
func (b *MemBus) ReadInt32(ctx context.Context, nodeID string) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkFail(nodeID); err != nil {
		return 0, fmt.Errorf("read %s: %w", nodeID, err)
	}
	return b.int32s[nodeID], nil
}

// Close implements Bus.
func (b *MemBus) Close(ctx context.Context) error {
	return nil
}
