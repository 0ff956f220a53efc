package main

import (
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/born-ml/batchnorm/autodiff"
	"github.com/born-ml/batchnorm/backend/cpu"
	"github.com/born-ml/batchnorm/nn"
	"github.com/born-ml/batchnorm/normalization"
	"github.com/born-ml/batchnorm/tensor"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"k8s.io/klog/v2"
)

type demoOptions struct {
	batch    int
	features int
	steps    int
	dtype    string
	eps      float64
	decay    float64
	seed     int64
	save     string
}

func (o *demoOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.batch, "batch", 8, "Number of samples per batch")
	cmd.Flags().IntVar(&o.features, "features", 3, "Number of features")
	cmd.Flags().StringVar(&o.dtype, "dtype", "float32", "Input dtype: float16, bfloat16, float32 or float64")
	cmd.Flags().Float64Var(&o.eps, "eps", 2e-5, "Value added to the variance")
	cmd.Flags().Int64Var(&o.seed, "seed", 1, "Random seed")
}

var dtypesByName = map[string]tensor.DataType{
	"float16":  tensor.Float16,
	"bfloat16": tensor.BFloat16,
	"float32":  tensor.Float32,
	"float64":  tensor.Float64,
}

func parseDType(name string) (tensor.DataType, error) {
	dtype, ok := dtypesByName[name]
	if !ok {
		return 0, errors.Wrapf(tensor.ErrDtype, "unsupported dtype %q", name)
	}
	return dtype, nil
}

// randomBatch draws a (batch, features) tensor whose feature j has mean j and
// standard deviation j+1.
func randomBatch(rng *rand.Rand, opts demoOptions, dtype tensor.DataType) (*tensor.RawTensor, error) {
	values := make([]float64, opts.batch*opts.features)
	for i := range values {
		j := float64(i % opts.features)
		values[i] = rng.NormFloat64()*(j+1) + j
	}
	return tensor.FromFloat64s(values, tensor.Shape{opts.batch, opts.features}, dtype, tensor.CPU)
}

// column extracts feature j of a row-major (rows, features) matrix.
func column(values []float64, features, j int) []float64 {
	out := make([]float64, 0, len(values)/features)
	for i := j; i < len(values); i += features {
		out = append(out, values[i])
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)
	return table
}

func newDemoCmd() *cobra.Command {
	opts := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Train a BatchNorm layer on random batches and print its statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.OutOrStdout(), opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&opts.steps, "steps", 5, "Number of training batches")
	cmd.Flags().Float64Var(&opts.decay, "decay", 0.9, "Running average decay")
	cmd.Flags().StringVar(&opts.save, "save", "", "Write the trained layer to this checkpoint file")
	return cmd
}

func runDemo(w io.Writer, opts demoOptions) error {
	dtype, err := parseDType(opts.dtype)
	if err != nil {
		return err
	}
	backend := cpu.New()
	cfg := nn.BatchNormConfig{Eps: opts.eps, Decay: opts.decay, DType: tensor.Float32}
	bn, err := nn.NewBatchNorm(tensor.Shape{opts.features}, cfg, backend)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(opts.seed))
	var x, out *tensor.RawTensor
	for step := range opts.steps {
		if x, err = randomBatch(rng, opts, dtype); err != nil {
			return err
		}
		if out, err = bn.Forward(x); err != nil {
			return errors.WithMessagef(err, "training step %d", step)
		}
		klog.V(1).Infof("demo: step %d running mean %v", step, bn.RunningMean.Float64s())
	}
	if out == nil {
		return errors.New("demo: --steps must be at least 1")
	}

	fmt.Fprintf(w, "Last training batch (%d x %d, %s), after %d steps:\n", opts.batch, opts.features, dtype, opts.steps)
	xs, ys := x.Float64s(), out.Float64s()
	runningMean, runningVar := bn.RunningMean.Float64s(), bn.RunningVar.Float64s()
	table := newTable(w, []string{"FEATURE", "BATCH MEAN", "BATCH VAR", "OUT MEAN", "OUT VAR", "RUNNING MEAN", "RUNNING VAR"})
	for j := range opts.features {
		xMean, xVar := stat.PopMeanVariance(column(xs, opts.features, j), nil)
		yMean, yVar := stat.PopMeanVariance(column(ys, opts.features, j), nil)
		table.Append([]string{
			strconv.Itoa(j),
			formatFloat(xMean), formatFloat(xVar),
			formatFloat(yMean), formatFloat(yVar),
			formatFloat(runningMean[j]), formatFloat(runningVar[j]),
		})
	}
	table.Render()

	bn.Eval()
	eval, err := bn.Forward(x)
	if err != nil {
		return errors.WithMessage(err, "evaluation")
	}
	fmt.Fprintln(w, "\nSame batch normalized with the running statistics:")
	es := eval.Float64s()
	table = newTable(w, []string{"FEATURE", "OUT MEAN", "OUT VAR"})
	for j := range opts.features {
		mean, variance := stat.PopMeanVariance(column(es, opts.features, j), nil)
		table.Append([]string{strconv.Itoa(j), formatFloat(mean), formatFloat(variance)})
	}
	table.Render()

	if opts.save != "" {
		checkpoint := &nn.Checkpoint{
			Model:    bn,
			Step:     int64(opts.steps),
			Metadata: map[string]string{"input_dtype": dtype.String()},
		}
		if err := checkpoint.Save(opts.save); err != nil {
			return err
		}
		fmt.Fprintf(w, "\nSaved checkpoint to %s\n", opts.save)
	}
	return nil
}

func newGradCmd() *cobra.Command {
	opts := demoOptions{}
	cmd := &cobra.Command{
		Use:   "grad",
		Short: "Print first- and second-order gradient norms of a batch normalization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGrad(cmd.OutOrStdout(), opts)
		},
	}
	opts.register(cmd)
	return cmd
}

// runGrad differentiates loss = sum(w * BatchNorm(x, gamma, beta)) twice.
func runGrad(w io.Writer, opts demoOptions) error {
	dtype, err := parseDType(opts.dtype)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(opts.seed))
	x, err := randomBatch(rng, opts, dtype)
	if err != nil {
		return err
	}
	weights, err := tensor.Randn(x.Shape(), dtype, tensor.CPU, rng)
	if err != nil {
		return err
	}
	shape := tensor.Shape{opts.features}
	gamma, err := tensor.Full(shape, dtype, 1.5, tensor.CPU)
	if err != nil {
		return err
	}
	beta, _ := tensor.Zeros(shape, dtype, tensor.CPU)
	runningMean, _ := tensor.Zeros(shape, tensor.Float32, tensor.CPU)
	runningVar, _ := tensor.Ones(shape, tensor.Float32, tensor.CPU)

	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	out, err := normalization.BatchNorm(backend, x, gamma, beta, runningMean, runningVar, opts.eps, 0.9, nil)
	if err != nil {
		return err
	}
	first, err := backend.Grad([]*tensor.RawTensor{out}, []*tensor.RawTensor{weights}, true)
	if err != nil {
		return errors.WithMessage(err, "first-order gradients")
	}
	second, err := backend.Grad([]*tensor.RawTensor{first[x], first[gamma], first[beta]}, nil, false)
	if err != nil {
		return errors.WithMessage(err, "second-order gradients")
	}
	backend.Tape().Clear()

	norm := func(grads map[*tensor.RawTensor]*tensor.RawTensor, t *tensor.RawTensor) string {
		g, ok := grads[t]
		if !ok {
			return "-"
		}
		return formatFloat(floats.Norm(g.Float64s(), 2))
	}
	fmt.Fprintf(w, "loss = sum(w * batch_norm(x)), x: %d x %d %s\n", opts.batch, opts.features, dtype)
	table := newTable(w, []string{"TENSOR", "|d loss|", "|d sum(d loss)|"})
	table.Append([]string{"x", norm(first, x), norm(second, x)})
	table.Append([]string{"gamma", norm(first, gamma), norm(second, gamma)})
	table.Append([]string{"beta", norm(first, beta), norm(second, beta)})
	table.Append([]string{"w", "-", norm(second, weights)})
	table.Render()
	return nil
}
