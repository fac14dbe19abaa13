package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/errors"
	"github.com/quantbind/factor-runtime/resource"
)

// StreamContext is owned incremental state for one module. Each Push
// advances it by exactly one time row: inputs carry the new row, outputs
// receive the factor values for it.
//
// A StreamContext is NOT safe for concurrent use. Pushes mutate engine-side
// state in row order; interleaving them from multiple goroutines corrupts
// that order, so callers must serialize access themselves.
type StreamContext struct {
	rt        *Runtime
	guard     *resource.Guard[engine.Handle]
	regID     uint64
	mod       *Module
	execToken *resource.Token
	rows      int
}

// NewStream creates incremental state for a module on an executor. The
// stream is bound to that module; pushes validate against its contract.
func (r *Runtime) NewStream(ctx context.Context, exec *Executor, mod *Module) (*StreamContext, error) {
	eh, err := exec.handle()
	if err != nil {
		return nil, err
	}
	mh, err := mod.engineHandle()
	if err != nil {
		return nil, err
	}

	h, st := r.eng.CreateStream(eh, mh)
	if !st.OK() {
		return nil, errors.EngineInitFailed("stream", int32(st))
	}

	s := &StreamContext{
		rt:        r,
		mod:       mod,
		execToken: exec.guard.Token(),
		guard:     resource.NewGuard("stream", h, r.eng.DestroyStream),
	}
	s.regID = r.resources.Add("stream", s.guard.Release)
	if s.regID == 0 {
		s.guard.Release()
		return nil, errors.AcquisitionFailed("stream on a closed runtime")
	}
	r.logger.Debug("stream created", zap.String("module", mod.Name()))
	return s, nil
}

// Module returns the module the stream was created for.
func (s *StreamContext) Module() *Module {
	return s.mod
}

// Rows returns how many rows have been pushed successfully.
func (s *StreamContext) Rows() int {
	return s.rows
}

// Alive reports whether the stream still owns its engine state.
func (s *StreamContext) Alive() bool {
	return s.guard.Alive()
}

// Close releases the stream's engine state. Idempotent.
func (s *StreamContext) Close() error {
	s.rt.resources.Release(s.regID)
	s.guard.Release()
	return nil
}

// Push advances the stream by one row. The buffer map must bind every
// contract buffer with one row of data (the buffer's lane count in
// elements, matching width). Validation failures return before the engine
// is called; outputs are written before Push returns.
func (s *StreamContext) Push(ctx context.Context, buffers *BufferMap) error {
	sh, err := s.guard.Handle()
	if err != nil {
		return err
	}
	if err := s.execToken.Check(); err != nil {
		return err
	}
	if err := s.mod.libToken.Check(); err != nil {
		return err
	}

	row, err := bindRow(s.mod, buffers)
	if err != nil {
		return err
	}

	if st := s.rt.eng.StreamPush(ctx, sh, row); !st.OK() {
		return errors.New(errors.PhaseStream, errors.KindEngineFailure).
			Module(s.mod.Name()).
			Code(int32(st)).
			Detail("push row %d", s.rows).
			Build()
	}
	s.rows++
	return nil
}

// bindRow validates one row's worth of buffers against the module contract.
func bindRow(mod *Module, buffers *BufferMap) ([]engine.Binding, error) {
	contract := mod.Info().Buffers
	row := make([]engine.Binding, 0, len(contract))

	for _, desc := range contract {
		span, ok := buffers.Get(desc.Name)
		if !ok {
			return nil, errors.MissingBuffer(mod.Name(), desc.Name)
		}
		if span.ElemWidth() != desc.ElemWidth {
			return nil, errors.ModuleMismatch(mod.Name(),
				"buffer "+desc.Name+" element width "+widthName(span.ElemWidth())+
					", contract wants "+widthName(desc.ElemWidth))
		}
		lanes := desc.RowElems()
		if got := span.Len(); got < lanes {
			return nil, errors.BufferTooSmall(mod.Name(), desc.Name, lanes, got)
		}
		row = append(row, engine.Binding{
			Name:  desc.Name,
			Span:  span,
			Lanes: lanes,
			Role:  desc.Role,
		})
	}
	return row, nil
}
