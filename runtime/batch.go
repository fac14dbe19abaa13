package runtime

import (
	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/errors"
)

// BatchPlan describes how a row range is cut into execution windows. Plans
// are immutable values; construction validates every parameter, so a plan in
// hand is always runnable.
type BatchPlan struct {
	totalRows int
	start     int
	length    int
	batchSize int
}

// FullRange plans execution over all rows in windows of batchSize. The last
// window may be short. totalRows and batchSize must be positive.
func FullRange(totalRows, batchSize int) (BatchPlan, error) {
	return Windowed(totalRows, 0, totalRows, batchSize)
}

// Windowed plans execution over rows [start, start+length) in windows of
// batchSize. The window must lie inside [0, totalRows), length and batchSize
// must be positive.
func Windowed(totalRows, start, length, batchSize int) (BatchPlan, error) {
	if totalRows < 1 {
		return BatchPlan{}, errors.InvalidArgument("total rows %d, want at least 1", totalRows)
	}
	if batchSize < 1 {
		return BatchPlan{}, errors.InvalidArgument("batch size %d, want at least 1", batchSize)
	}
	if start < 0 {
		return BatchPlan{}, errors.InvalidArgument("window start %d, want non-negative", start)
	}
	if length < 1 {
		return BatchPlan{}, errors.InvalidArgument("window length %d, want at least 1", length)
	}
	if start+length > totalRows {
		return BatchPlan{}, errors.InvalidArgument("window [%d, %d) exceeds %d total rows",
			start, start+length, totalRows)
	}
	return BatchPlan{totalRows: totalRows, start: start, length: length, batchSize: batchSize}, nil
}

// TotalRows returns the declared buffer extent in rows.
func (p BatchPlan) TotalRows() int { return p.totalRows }

// Start returns the first row the plan executes.
func (p BatchPlan) Start() int { return p.start }

// Length returns the number of rows the plan executes.
func (p BatchPlan) Length() int { return p.length }

// End returns the row one past the last executed row.
func (p BatchPlan) End() int { return p.start + p.length }

// BatchSize returns the window size.
func (p BatchPlan) BatchSize() int { return p.batchSize }

// Windows returns the execution windows in ascending, non-overlapping order.
// Every row in [Start, End) is covered exactly once.
func (p BatchPlan) Windows() []engine.Batch {
	if p.length == 0 {
		return nil
	}
	n := (p.length + p.batchSize - 1) / p.batchSize
	out := make([]engine.Batch, 0, n)
	for off := 0; off < p.length; off += p.batchSize {
		size := p.batchSize
		if off+size > p.length {
			size = p.length - off
		}
		out = append(out, engine.Batch{
			Start:     p.start + off,
			Length:    size,
			TotalRows: p.totalRows,
		})
	}
	return out
}
