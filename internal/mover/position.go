package mover

import (
	"context"
	"math"

	"github.com/siamwms/asrsd/internal/plc"
)

// Calibration anchors the encoder lattice on a reference cell. The
// reference cell (usually column 1, row 1) is measured on site; StepX and
// StepY are the encoder pulses per cell.
type Calibration struct {
	RefCol  int     `yaml:"ref_col"`
	RefRow  int     `yaml:"ref_row"`
	EncRefX int     `yaml:"enc_ref_x"`
	EncRefY int     `yaml:"enc_ref_y"`
	StepX   float64 `yaml:"step_x"`
	StepY   float64 `yaml:"step_y"`
}

// DefaultCalibration returns the values measured on the plant installation.
func DefaultCalibration() Calibration {
	return Calibration{
		RefCol:  1,
		RefRow:  1,
		EncRefX: 470200,
		EncRefY: 28720,
		StepX:   20000.0,
		StepY:   17127.0,
	}
}

// Convert maps raw encoder counts to the nearest grid cell. Coordinates
// clamp at 1; the crane cannot be left or below the first cell.
func (c Calibration) Convert(ex, ey int32) (col, row int) {
	col = c.RefCol + int(math.Round(float64(int(ex)-c.EncRefX)/c.StepX))
	row = c.RefRow + int(math.Round(float64(int(ey)-c.EncRefY)/c.StepY))
	if col < 1 {
		col = 1
	}
	if row < 1 {
		row = 1
	}
	return col, row
}

// PositionTracker caches the crane's last known grid position. Encoder read
// failures keep the previous value rather than erroring; position is
// advisory, not part of the handshake.
type PositionTracker struct {
	cal Calibration

	col, row, depth int
	rawX, rawY      int32
	haveRaw         bool
}

// NewPositionTracker starts at cell (1,1,0) until the first encoder read.
func NewPositionTracker(cal Calibration) *PositionTracker {
	return &PositionTracker{cal: cal, col: 1, row: 1}
}

// Update reads both encoders and refreshes the cached cell.
func (p *PositionTracker) Update(ctx context.Context, bus plc.Bus, nodes plc.Nodes) {
	ex, errX := bus.ReadInt32(ctx, nodes.CraneX)
	ey, errY := bus.ReadInt32(ctx, nodes.CraneY)
	if errX != nil || errY != nil {
		return
	}
	p.rawX, p.rawY, p.haveRaw = ex, ey, true
	p.col, p.row = p.cal.Convert(ex, ey)
	p.depth = 0
}

// Position returns the last known grid cell.
func (p *PositionTracker) Position() (col, row, depth int) {
	return p.col, p.row, p.depth
}

// Raw returns the last raw encoder counts, if any read has succeeded.
func (p *PositionTracker) Raw() (x, y int32, ok bool) {
	return p.rawX, p.rawY, p.haveRaw
}
