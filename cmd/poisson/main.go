package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nataneb/dealii/pkg/matrix"
	"github.com/nataneb/dealii/pkg/precondition"
	"github.com/nataneb/dealii/pkg/solver"
	"github.com/nataneb/dealii/pkg/util"
)

type kindConfig struct {
	omega     float64
	sweeps    int
	blockSize int
	fill      int
	degree    int
	details   bool
}

// assemblePoisson builds the 5-point stencil for the unit square with n
// interior points per side.
func assemblePoisson(n int) *matrix.CSR {
	idx := func(i, j int) int { return i*n + j }
	b := matrix.NewBuilder(n*n, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			row := idx(i, j)
			b.Add(row, row, 4)
			if i > 0 {
				b.Add(row, idx(i-1, j), -1)
			}
			if i < n-1 {
				b.Add(row, idx(i+1, j), -1)
			}
			if j > 0 {
				b.Add(row, idx(i, j-1), -1)
			}
			if j < n-1 {
				b.Add(row, idx(i, j+1), -1)
			}
		}
	}
	return b.Finish()
}

func buildPreconditioner(name string, m *matrix.CSR, c kindConfig) (solver.Preconditioner, error) {
	switch name {
	case "identity":
		p := new(precondition.Identity)
		return p, p.Initialize(m)
	case "jacobi":
		d := precondition.DefaultJacobiData()
		d.Omega = c.omega
		d.NSweeps = c.sweeps
		p := new(precondition.Jacobi)
		return p, p.Initialize(m, d)
	case "sor":
		d := precondition.DefaultSORData()
		d.Omega = c.omega
		d.NSweeps = c.sweeps
		p := new(precondition.SOR)
		return p, p.Initialize(m, d)
	case "ssor":
		d := precondition.DefaultSSORData()
		d.Omega = c.omega
		d.NSweeps = c.sweeps
		p := new(precondition.SSOR)
		return p, p.Initialize(m, d)
	case "block-jacobi":
		d := precondition.DefaultBlockJacobiData()
		d.BlockSize = c.blockSize
		d.Omega = c.omega
		d.NSweeps = c.sweeps
		p := new(precondition.BlockJacobi)
		return p, p.Initialize(m, d)
	case "block-sor":
		d := precondition.DefaultBlockSORData()
		d.BlockSize = c.blockSize
		d.Omega = c.omega
		d.NSweeps = c.sweeps
		p := new(precondition.BlockSOR)
		return p, p.Initialize(m, d)
	case "block-ssor":
		d := precondition.DefaultBlockSSORData()
		d.BlockSize = c.blockSize
		d.Omega = c.omega
		d.NSweeps = c.sweeps
		p := new(precondition.BlockSSOR)
		return p, p.Initialize(m, d)
	case "ic":
		d := precondition.DefaultICData()
		d.Fill = c.fill
		p := new(precondition.IC)
		return p, p.Initialize(m, d)
	case "ilu":
		d := precondition.DefaultILUData()
		d.Fill = c.fill
		p := new(precondition.ILU)
		return p, p.Initialize(m, d)
	case "ilut":
		d := precondition.DefaultILUTData()
		d.Fill = float64(c.fill)
		p := new(precondition.ILUT)
		return p, p.Initialize(m, d)
	case "chebyshev":
		d := precondition.DefaultChebyshevData()
		d.Degree = c.degree
		d.MaxEigenvalue = 2
		p := new(precondition.Chebyshev)
		return p, p.Initialize(m, d)
	case "direct":
		p := new(precondition.BlockwiseDirect)
		return p, p.Initialize(m, precondition.DefaultBlockwiseDirectData())
	case "amg":
		d := precondition.DefaultAMGData()
		d.SmootherSweeps = c.sweeps
		d.OutputDetails = c.details
		p := new(precondition.AMG)
		return p, p.Initialize(m, d)
	default:
		return nil, fmt.Errorf("unknown preconditioner kind %q", name)
	}
}

func saveResidualPlot(path string, history []float64) error {
	pl := plot.New()
	pl.Title.Text = "Residual history"
	pl.X.Label.Text = "iteration"
	pl.Y.Label.Text = "relative residual"
	pl.Y.Scale = plot.LogScale{}
	pl.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	pts := make(plotter.XYs, 0, len(history))
	for i, h := range history {
		// A log axis cannot place an exactly converged final residual.
		if h > 0 {
			pts = append(pts, plotter.XY{X: float64(i), Y: h})
		}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	pl.Add(plotter.NewGrid(), line)
	return pl.Save(6*vg.Inch, 4*vg.Inch, path)
}

func main() {
	kind := flag.String("kind", "amg", "preconditioner kind: identity, jacobi, sor, ssor, block-jacobi, block-sor, block-ssor, ic, ilu, ilut, chebyshev, direct, amg")
	gridN := flag.Int("n", 64, "interior grid points per side of the Poisson problem")
	mtxPath := flag.String("mtx", "", "read the system from a MatrixMarket file instead of assembling")
	method := flag.String("solver", "cg", "iterative method: cg or bicgstab")
	tol := flag.Float64("tol", 1e-10, "relative residual target")
	maxIter := flag.Int("maxiter", 1000, "iteration cap")
	omega := flag.Float64("omega", 1, "relaxation weight for the point and block kinds")
	sweeps := flag.Int("sweeps", 1, "sweeps per apply, or smoother sweeps for amg")
	blockSize := flag.Int("block", 32, "rows per block for the block kinds")
	fill := flag.Int("fill", 0, "fill level for ic, ilu and ilut")
	degree := flag.Int("degree", 3, "polynomial degree for chebyshev")
	details := flag.Bool("details", false, "log multigrid construction diagnostics")
	plotPath := flag.String("plot", "", "save a residual history plot to this file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// 1. Obtain the system
	var m *matrix.CSR
	if *mtxPath != "" {
		f, err := os.Open(*mtxPath)
		if err != nil {
			log.Fatalf("Error opening matrix file: %v", err)
		}
		m, err = matrix.ReadMatrixMarket(f)
		f.Close()
		if err != nil {
			log.Fatalf("Error reading matrix file: %v", err)
		}
		fmt.Printf("Read %s: %d rows, %d nonzeros\n", *mtxPath, m.NumRows(), m.NNZ())
	} else {
		m = assemblePoisson(*gridN)
		fmt.Printf("Assembled 2-D Poisson on a %dx%d grid: %d rows, %d nonzeros\n",
			*gridN, *gridN, m.NumRows(), m.NNZ())
	}
	n := m.NumRows()
	b := make([]float64, n)
	for i := range b {
		b[i] = 1
	}

	// 2. Build the preconditioner
	start := time.Now()
	pc, err := buildPreconditioner(*kind, m, kindConfig{
		omega:     *omega,
		sweeps:    *sweeps,
		blockSize: *blockSize,
		fill:      *fill,
		degree:    *degree,
		details:   *details,
	})
	if err != nil {
		log.Fatalf("Error building %s preconditioner: %v", *kind, err)
	}
	setup := time.Since(start)
	fmt.Printf("Preconditioner: %s (setup %v)\n", *kind, setup.Round(time.Microsecond))
	if mr, ok := pc.(precondition.MemoryReporter); ok {
		fmt.Printf("Preconditioner memory: %s\n", util.FormatBytes(mr.MemoryConsumption()))
	}

	// 3. Solve
	settings := solver.Settings{Tolerance: *tol, MaxIterations: *maxIter, History: true}
	x := make([]float64, n)
	start = time.Now()
	var res solver.Result
	switch *method {
	case "cg":
		res, err = solver.CG(m, x, b, pc, settings)
	case "bicgstab":
		res, err = solver.BiCGStab(m, x, b, pc, settings)
	default:
		log.Fatalf("Unknown solver %q", *method)
	}
	elapsed := time.Since(start)
	if err != nil {
		log.Fatalf("Solve failed: %v", err)
	}

	// 4. Report
	fmt.Printf("Converged in %d iterations (%v)\n", res.Iterations, elapsed.Round(time.Microsecond))
	fmt.Printf("Relative residual: %s\n", util.FormatResidual(res.Residual))
	fmt.Printf("Mean reduction per iteration: %s\n", util.FormatReduction(res.History))

	if *plotPath != "" {
		if err := saveResidualPlot(*plotPath, res.History); err != nil {
			log.Fatalf("Error writing plot: %v", err)
		}
		fmt.Printf("Residual history plot written to %s\n", *plotPath)
	}
}
