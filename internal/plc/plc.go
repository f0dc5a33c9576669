// Package plc provides access to the crane PLC's register interface over
// OPC UA. The Bus interface abstracts the transport so the mover, the QR
// listener and the status feed can be exercised against an in-memory fake.
package plc

import "context"

// Bus is a read/write view of the PLC register space. All calls block until
// the device answers or ctx is done. Implementations must be safe for
// concurrent use; register-level mutual exclusion is the caller's problem.
type Bus interface {
	ReadBool(ctx context.Context, nodeID string) (bool, error)
	WriteBool(ctx context.Context, nodeID string, value bool) error
	ReadString(ctx context.Context, nodeID string) (string, error)
	WriteString(ctx context.Context, nodeID string, value string) error
	ReadInt32(ctx context.Context, nodeID string) (int32, error)
	Close(ctx context.Context) error
}
