package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asrsd.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
version: "1.0"
instance: wh1
plc:
  endpoint: opc.tcp://192.168.1.10:4840
database:
  path: /var/lib/asrsd/asrs.db
redis:
  addr: localhost:6379
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "wh1", cfg.Instance)
	assert.Equal(t, "opc.tcp://192.168.1.10:4840", cfg.PLC.Endpoint)
	assert.Equal(t, "/var/lib/asrsd/asrs.db", cfg.Database.Path)

	// Defaults applied.
	assert.Equal(t, ":8001", cfg.API.Listen)
	assert.Equal(t, 2*time.Second, cfg.PLC.RetryDelay.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Crane.QRInterval.Std())
	assert.Equal(t, time.Second, cfg.Crane.StatusInterval.Std())

	// Plant defaults when node map and calibration are omitted.
	assert.Equal(t, "ns=4;i=3", cfg.Nodes().Command)
	assert.Equal(t, 470200, cfg.Calibration().EncRefX)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
version: "1.0"
instance: wh1
plc:
  endpoint: opc.tcp://plc:4840
  retry_delay: 5s
  max_retries: 10
  nodes:
    command: ns=2;i=100
database:
  path: ":memory:"
redis:
  addr: redis:6379
api:
  listen: ":9000"
crane:
  calibration:
    ref_col: 1
    ref_row: 1
    enc_ref_x: 100000
    enc_ref_y: 20000
    step_x: 15000
    step_y: 16000
  qr_interval: 250ms
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PLC.RetryDelay.Std())
	assert.Equal(t, 10, cfg.PLC.MaxRetries)
	assert.Equal(t, "ns=2;i=100", cfg.Nodes().Command)
	assert.Equal(t, ":9000", cfg.API.Listen)
	assert.Equal(t, 100000, cfg.Calibration().EncRefX)
	assert.Equal(t, 250*time.Millisecond, cfg.Crane.QRInterval.Std())
}

func TestLoadRejections(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"wrong version", `
version: "2.0"
instance: wh1
plc: {endpoint: opc.tcp://plc:4840}
database: {path: db}
redis: {addr: r:6379}
`},
		{"missing instance", `
version: "1.0"
plc: {endpoint: opc.tcp://plc:4840}
database: {path: db}
redis: {addr: r:6379}
`},
		{"bad endpoint scheme", `
version: "1.0"
instance: wh1
plc: {endpoint: http://plc:4840}
database: {path: db}
redis: {addr: r:6379}
`},
		{"endpoint without port", `
version: "1.0"
instance: wh1
plc: {endpoint: opc.tcp://plc}
database: {path: db}
redis: {addr: r:6379}
`},
		{"missing database path", `
version: "1.0"
instance: wh1
plc: {endpoint: opc.tcp://plc:4840}
redis: {addr: r:6379}
`},
		{"missing redis addr", `
version: "1.0"
instance: wh1
plc: {endpoint: opc.tcp://plc:4840}
database: {path: db}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
