package plc

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// DialConfig controls connection establishment to the OPC UA server.
type DialConfig struct {
	Endpoint   string
	RetryDelay time.Duration
	MaxRetries int // 0 means retry forever
}

// OPCBus is a Bus backed by one OPC UA client session. Parsed node ids are
// cached; the underlying client serializes requests on its secure channel,
// so OPCBus is safe for concurrent use.
type OPCBus struct {
	client *opcua.Client

	mu    sync.Mutex
	nodes map[string]*ua.NodeID
}

// Dial connects to the OPC UA server, retrying with a fixed delay. With
// MaxRetries 0 it keeps trying until ctx is cancelled; the crane PLC is
// expected to come and go across power cycles.
func Dial(ctx context.Context, cfg DialConfig) (*OPCBus, error) {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		client, err := opcua.NewClient(cfg.Endpoint,
			opcua.SecurityMode(ua.MessageSecurityModeNone),
			opcua.SecurityPolicy("None"),
		)
		if err != nil {
			return nil, fmt.Errorf("create opc ua client for %s: %w", cfg.Endpoint, err)
		}

		if err = client.Connect(ctx); err == nil {
			log.Printf("[PLC] Connected to %s", cfg.Endpoint)
			return &OPCBus{client: client, nodes: make(map[string]*ua.NodeID)}, nil
		}
		lastErr = err
		log.Printf("[PLC] Connect attempt %d to %s failed: %v", attempt, cfg.Endpoint, err)

		if cfg.MaxRetries > 0 && attempt >= cfg.MaxRetries {
			return nil, fmt.Errorf("connect to %s after %d attempts: %w", cfg.Endpoint, attempt, lastErr)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to %s: %w", cfg.Endpoint, ctx.Err())
		case <-time.After(cfg.RetryDelay):
		}
	}
}

func (b *OPCBus) nodeID(s string) (*ua.NodeID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.nodes[s]; ok {
		return id, nil
	}
	id, err := ua.ParseNodeID(s)
	if err != nil {
		return nil, fmt.Errorf("parse node id %q: %w", s, err)
	}
	b.nodes[s] = id
	return id, nil
}

func (b *OPCBus) read(ctx context.Context, nodeID string) (interface{}, error) {
	id, err := b.nodeID(nodeID)
	if err != nil {
		return nil, err
	}
	req := &ua.ReadRequest{
		MaxAge: 100,
		NodesToRead: []*ua.ReadValueID{
			{NodeID: id, AttributeID: ua.AttributeIDValue},
		},
		TimestampsToReturn: ua.TimestampsToReturnNeither,
	}
	resp, err := b.client.Read(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", nodeID, err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("read %s: empty response", nodeID)
	}
	result := resp.Results[0]
	if result.Status != ua.StatusOK {
		return nil, fmt.Errorf("read %s: status %v", nodeID, result.Status)
	}
	if result.Value == nil {
		return nil, fmt.Errorf("read %s: null value", nodeID)
	}
	return result.Value.Value(), nil
}

func (b *OPCBus) write(ctx context.Context, nodeID string, value interface{}) error {
	id, err := b.nodeID(nodeID)
	if err != nil {
		return err
	}
	variant, err := ua.NewVariant(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", nodeID, err)
	}
	req := &ua.WriteRequest{
		NodesToWrite: []*ua.WriteValue{
			{
				NodeID:      id,
				AttributeID: ua.AttributeIDValue,
				Value: &ua.DataValue{
					// Value only. The PLC rejects writes that carry
					// source or server timestamps.
					EncodingMask: ua.DataValueValue,
					Value:        variant,
				},
			},
		},
	}
	resp, err := b.client.Write(ctx, req)
	if err != nil {
		return fmt.Errorf("write %s: %w", nodeID, err)
	}
	if len(resp.Results) == 0 {
		return fmt.Errorf("write %s: empty response", nodeID)
	}
	if resp.Results[0] != ua.StatusOK {
		return fmt.Errorf("write %s: status %v", nodeID, resp.Results[0])
	}
	return nil
}

// ReadBool implements Bus.
func (b *OPCBus) ReadBool(ctx context.Context, nodeID string) (bool, error) {
	v, err := b.read(ctx, nodeID)
	if err != nil {
		return false, err
	}
	bv, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("read %s: expected bool, got %T", nodeID, v)
	}
	return bv, nil
}

// WriteBool implements Bus.
func (b *OPCBus) WriteBool(ctx context.Context, nodeID string, value bool) error {
	return b.write(ctx, nodeID, value)
}

// ReadString implements Bus.
func (b *OPCBus) ReadString(ctx context.Context, nodeID string) (string, error) {
	v, err := b.read(ctx, nodeID)
	if err != nil {
		return "", err
	}
	sv, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("read %s: expected string, got %T", nodeID, v)
	}
	return sv, nil
}

// WriteString implements Bus.
func (b *OPCBus) WriteString(ctx context.Context, nodeID string, value string) error {
	return b.write(ctx, nodeID, value)
}

// ReadInt32 implements Bus. The crane encoders publish Int32 counts.
func (b *OPCBus) ReadInt32(ctx context.Context, nodeID string) (int32, error) {
	v, err := b.read(ctx, nodeID)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int32:
		return n, nil
	case int16:
		return int32(n), nil
	case int64:
		return int32(n), nil
	case uint32:
		return int32(n), nil
	default:
		return 0, fmt.Errorf("read %s: expected integer, got %T", nodeID, v)
	}
}

// Close terminates the OPC UA session.
func (b *OPCBus) Close(ctx context.Context) error {
	return b.client.Close(ctx)
}
