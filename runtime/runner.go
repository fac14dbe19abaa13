package runtime

import (
	"context"

	factorruntime "github.com/quantbind/factor-runtime"
	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/errors"
)

// RunGraph executes a module over the planned row range, window by window in
// ascending order. The buffer map must bind every buffer of the module's
// contract with matching element width and enough rows for the plan; any
// validation failure returns before the engine is called at all. The first
// engine failure aborts the remaining windows.
//
// Rows outside the plan's window are never written. Output buffers still
// need capacity for the full extent the plan declares, since the engine
// addresses them by absolute row.
func RunGraph(ctx context.Context, exec *Executor, mod *Module, buffers *BufferMap, plan BatchPlan) error {
	eh, err := exec.handle()
	if err != nil {
		return err
	}
	mh, err := mod.engineHandle()
	if err != nil {
		return err
	}

	bindings, err := bindBatch(mod, buffers, plan)
	if err != nil {
		return err
	}

	for _, w := range plan.Windows() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if st := exec.rt.eng.RunGraph(ctx, eh, mh, bindings, w); !st.OK() {
			return errors.New(errors.PhaseExecute, errors.KindEngineFailure).
				Module(mod.Name()).
				Code(int32(st)).
				Detail("window [%d, %d)", w.Start, w.Start+w.Length).
				Build()
		}
	}
	return nil
}

// bindBatch validates a buffer map against the module contract for a batch
// plan and produces bindings in contract order. No engine calls happen here.
func bindBatch(mod *Module, buffers *BufferMap, plan BatchPlan) ([]engine.Binding, error) {
	contract := mod.Info().Buffers
	bindings := make([]engine.Binding, 0, len(contract))

	for _, desc := range contract {
		span, ok := buffers.Get(desc.Name)
		if !ok {
			return nil, errors.MissingBuffer(mod.Name(), desc.Name)
		}
		if err := checkSpan(mod.Name(), desc, span, plan.End()); err != nil {
			return nil, err
		}
		bindings = append(bindings, engine.Binding{
			Name:  desc.Name,
			Span:  span,
			Lanes: desc.RowElems(),
			Role:  desc.Role,
		})
	}
	return bindings, nil
}

// checkSpan verifies one buffer against its descriptor for rows [0, end).
func checkSpan(module string, desc engine.BufferDesc, span factorruntime.Span, end int) error {
	if span.ElemWidth() != desc.ElemWidth {
		return errors.ModuleMismatch(module,
			"buffer "+desc.Name+" element width "+widthName(span.ElemWidth())+
				", contract wants "+widthName(desc.ElemWidth))
	}

	lanes := desc.RowElems()
	needed := end * lanes
	if stride := span.Stride(); stride > 0 {
		if stride < lanes {
			return errors.ModuleMismatch(module,
				"buffer "+desc.Name+" stride shorter than its row")
		}
		needed = (end-1)*stride + lanes
	}
	if got := span.Len(); got < needed {
		return errors.BufferTooSmall(module, desc.Name, needed, got)
	}
	return nil
}

func widthName(w int) string {
	switch w {
	case 4:
		return "float32"
	case 8:
		return "float64"
	}
	return "unset"
}
