package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/quantbind/factor-runtime/engine"
	"github.com/quantbind/factor-runtime/runtime"
)

func main() {
	var (
		libPath     = flag.String("lib", "", "Path to compiled factor library")
		moduleName  = flag.String("module", "", "Module name inside the library")
		backend     = flag.String("engine", "wasm", "Engine backend: native or wasm")
		enginePath  = flag.String("engine-lib", "", "Path to the native engine runtime (native backend)")
		threads     = flag.Int("threads", 1, "Executor worker count")
		inputFile   = flag.String("input", "", "CSV file with one column per input buffer")
		batchSize   = flag.Int("batch", 1024, "Rows per execution window")
		start       = flag.Int("start", -1, "First row to execute (default: all rows)")
		length      = flag.Int("length", 0, "Row count to execute (with -start)")
		stream      = flag.Bool("stream", false, "Push rows one at a time instead of batching")
		list        = flag.Bool("list", false, "Print the module's buffer contract and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *libPath == "" || *moduleName == "" {
		fmt.Fprintln(os.Stderr, "Usage: factor-run -lib <factors> -module <name> -input <data.csv>")
		fmt.Fprintln(os.Stderr, "       factor-run -lib <factors> -module <name> -list")
		fmt.Fprintln(os.Stderr, "       factor-run -lib <factors> -module <name> -i  (interactive mode)")
		os.Exit(1)
	}

	eng, err := newEngine(*backend, *enginePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(eng, *libPath, *moduleName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(eng, *libPath, *moduleName, *inputFile, *threads, *batchSize, *start, *length, *stream, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newEngine(backend, enginePath string) (engine.Engine, error) {
	switch backend {
	case "wasm":
		return engine.NewWazeroEngine(context.Background())
	case "native":
		if enginePath == "" {
			return nil, fmt.Errorf("native backend needs -engine-lib")
		}
		return engine.NewNativeEngine(enginePath)
	}
	return nil, fmt.Errorf("unknown engine backend %q", backend)
}

func run(eng engine.Engine, libPath, moduleName, inputFile string, threads, batchSize, start, length int, streamMode, listOnly bool) error {
	ctx := context.Background()

	rt := runtime.New(eng)
	defer rt.Close(ctx)

	lib, err := rt.LoadLibrary(ctx, libPath)
	if err != nil {
		return err
	}
	mod, err := lib.Module(moduleName)
	if err != nil {
		return err
	}

	info := mod.Info()
	if listOnly {
		printContract(info)
		return nil
	}

	if inputFile == "" {
		return fmt.Errorf("no input data; pass -input or -list")
	}
	columns, rows, err := readCSV(inputFile)
	if err != nil {
		return err
	}

	exec, err := rt.MultiThreadExecutor(threads)
	if err != nil {
		return err
	}

	outputs := make(map[string][]float32)
	if streamMode {
		err = runStream(ctx, rt, exec, mod, columns, rows, outputs)
	} else {
		err = runBatch(ctx, exec, mod, columns, rows, batchSize, start, length, outputs)
	}
	if err != nil {
		return err
	}

	return writeResults(os.Stdout, info, columns, outputs, rows)
}

func runBatch(ctx context.Context, exec *runtime.Executor, mod *runtime.Module,
	columns map[string][]float32, rows, batchSize, start, length int, outputs map[string][]float32) error {

	buffers := runtime.NewBufferMap()
	for _, desc := range mod.Info().Buffers {
		if desc.Role.Writable() {
			out := make([]float32, rows*desc.RowElems())
			outputs[desc.Name] = out
			if err := buffers.SetBufferSlice(desc.Name, out); err != nil {
				return err
			}
			continue
		}
		col, ok := columns[desc.Name]
		if !ok {
			return fmt.Errorf("input column %q missing from CSV", desc.Name)
		}
		if err := buffers.SetBufferSlice(desc.Name, col); err != nil {
			return err
		}
	}

	var plan runtime.BatchPlan
	var err error
	if start >= 0 {
		plan, err = runtime.Windowed(rows, start, length, batchSize)
	} else {
		plan, err = runtime.FullRange(rows, batchSize)
	}
	if err != nil {
		return err
	}
	return runtime.RunGraph(ctx, exec, mod, buffers, plan)
}

func runStream(ctx context.Context, rt *runtime.Runtime, exec *runtime.Executor, mod *runtime.Module,
	columns map[string][]float32, rows int, outputs map[string][]float32) error {

	stream, err := rt.NewStream(ctx, exec, mod)
	if err != nil {
		return err
	}
	defer stream.Close()

	info := mod.Info()
	for _, desc := range info.Buffers {
		if desc.Role.Writable() {
			outputs[desc.Name] = make([]float32, 0, rows)
		}
	}

	for r := 0; r < rows; r++ {
		row := runtime.NewBufferMap()
		outRow := make(map[string][]float32)
		for _, desc := range info.Buffers {
			lanes := desc.RowElems()
			if desc.Role.Writable() {
				out := make([]float32, lanes)
				outRow[desc.Name] = out
				if err := row.SetBufferSlice(desc.Name, out); err != nil {
					return err
				}
				continue
			}
			col, ok := columns[desc.Name]
			if !ok {
				return fmt.Errorf("input column %q missing from CSV", desc.Name)
			}
			if err := row.SetBufferSlice(desc.Name, col[r*lanes:(r+1)*lanes]); err != nil {
				return err
			}
		}
		if err := stream.Push(ctx, row); err != nil {
			return fmt.Errorf("row %d: %w", r, err)
		}
		for name, vals := range outRow {
			outputs[name] = append(outputs[name], vals...)
		}
	}
	return nil
}

// readCSV loads a headered CSV into per-column float32 slices.
func readCSV(path string) (map[string][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, 0, err
	}
	if len(records) < 2 {
		return nil, 0, fmt.Errorf("%s: need a header row and at least one data row", path)
	}

	header := records[0]
	columns := make(map[string][]float32, len(header))
	rows := len(records) - 1
	for c, name := range header {
		col := make([]float32, rows)
		for r := 1; r < len(records); r++ {
			v, err := strconv.ParseFloat(records[r][c], 32)
			if err != nil {
				return nil, 0, fmt.Errorf("%s row %d column %q: %w", path, r, name, err)
			}
			col[r-1] = float32(v)
		}
		columns[name] = col
	}
	return columns, rows, nil
}

// formatRow renders row r of a lane-major column: one value for scalar
// buffers, semicolon-joined lane values for vector buffers.
func formatRow(col []float32, r, lanes int) string {
	start := r * lanes
	if start >= len(col) {
		return ""
	}
	end := start + lanes
	if end > len(col) {
		end = len(col)
	}
	if lanes == 1 {
		return strconv.FormatFloat(float64(col[start]), 'g', -1, 32)
	}
	parts := make([]string, 0, lanes)
	for _, v := range col[start:end] {
		parts = append(parts, strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	return strings.Join(parts, ";")
}

func printContract(info engine.ModuleInfo) {
	fmt.Printf("Module: %s\n\nBuffers:\n", info.Name)
	for _, d := range info.Buffers {
		fmt.Printf("  %-20s %-6s %-6s lanes=%d width=%d\n",
			d.Name, d.Role, d.Shape, d.RowElems(), d.ElemWidth)
	}
}

func writeResults(out *os.File, info engine.ModuleInfo, columns map[string][]float32,
	outputs map[string][]float32, rows int) error {

	pretty := term.IsTerminal(int(out.Fd()))

	var names []string
	for _, d := range info.Buffers {
		names = append(names, d.Name)
	}

	w := csv.NewWriter(out)
	if err := w.Write(names); err != nil {
		return err
	}
	for r := 0; r < rows; r++ {
		rec := make([]string, len(info.Buffers))
		for i, d := range info.Buffers {
			col := outputs[d.Name]
			if col == nil {
				col = columns[d.Name]
			}
			rec[i] = formatRow(col, r, d.RowElems())
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if pretty {
		fmt.Fprintf(out, "\n%d rows\n", rows)
	}
	return nil
}
