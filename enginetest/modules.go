package enginetest

import "github.com/quantbind/factor-runtime/engine"

// scalarContract builds the common one-input one-output scalar contract.
func scalarContract(width int) []engine.BufferDesc {
	return []engine.BufferDesc{
		{Name: "in", Role: engine.RoleInput, Shape: engine.ShapeScalar, Lanes: 1, ElemWidth: width},
		{Name: "out", Role: engine.RoleOutput, Shape: engine.ShapeScalar, Lanes: 1, ElemWidth: width},
	}
}

// IdentityModule copies "in" to "out" row by row.
func IdentityModule(name string) ModuleDef {
	return ModuleDef{
		Name:    name,
		Buffers: scalarContract(4),
		Step: func(_ int, in map[string][]float64) map[string][]float64 {
			return map[string][]float64{"out": in["in"]}
		},
	}
}

// ScaleModule multiplies "in" by k into "out".
func ScaleModule(name string, k float64) ModuleDef {
	return ModuleDef{
		Name:    name,
		Buffers: scalarContract(4),
		Step: func(_ int, in map[string][]float64) map[string][]float64 {
			return map[string][]float64{"out": {in["in"][0] * k}}
		},
	}
}

// LaneSumModule sums a vector "in" of the given lane count into scalar "out".
func LaneSumModule(name string, lanes int) ModuleDef {
	return ModuleDef{
		Name: name,
		Buffers: []engine.BufferDesc{
			{Name: "in", Role: engine.RoleInput, Shape: engine.ShapeVector, Lanes: lanes, ElemWidth: 4},
			{Name: "out", Role: engine.RoleOutput, Shape: engine.ShapeScalar, Lanes: 1, ElemWidth: 4},
		},
		Step: func(_ int, in map[string][]float64) map[string][]float64 {
			var sum float64
			for _, v := range in["in"] {
				sum += v
			}
			return map[string][]float64{"out": {sum}}
		},
	}
}

// Wide64Module is a float64 identity, for width-mismatch tests.
func Wide64Module(name string) ModuleDef {
	return ModuleDef{
		Name:    name,
		Buffers: scalarContract(8),
		Step: func(_ int, in map[string][]float64) map[string][]float64 {
			return map[string][]float64{"out": in["in"]}
		},
	}
}
