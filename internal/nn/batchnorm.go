package nn

import (
	"github.com/born-ml/batchnorm/internal/normalization"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BatchNormConfig holds configuration for a BatchNorm layer.
type BatchNormConfig struct {
	Eps   float64         // added to the variance (default: 2e-5)
	Decay float64         // running average decay, 0 keeps only the last batch (default: 0.9)
	Axis  []int           // axes normalized over (default: {0})
	DType tensor.DataType // dtype of gamma, beta and the running averages (default: Float32)
}

// DefaultBatchNormConfig returns the default configuration.
func DefaultBatchNormConfig() BatchNormConfig {
	return BatchNormConfig{
		Eps:   2e-5,
		Decay: 0.9,
		Axis:  []int{0},
		DType: tensor.Float32,
	}
}

// BatchNorm applies batch normalization over the axes of its config.
//
// In training mode (the default) each Forward normalizes with the statistics
// of the batch and folds them into RunningMean and RunningVar. In evaluation
// mode Forward normalizes with the running averages and changes nothing.
//
// Formula: Y = gamma * (X - mean) / sqrt(var + eps) + beta
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	bn, err := nn.NewBatchNorm(tensor.Shape{64}, nn.DefaultBatchNormConfig(), backend)
//	y, err := bn.Forward(x) // x: [batch, 64]
//	bn.Eval()
//	y, err = bn.Forward(x) // uses the running averages
type BatchNorm[B tensor.Backend] struct {
	Gamma       *Parameter        // learnable scale, initialized to ones
	Beta        *Parameter        // learnable shift, initialized to zeros
	RunningMean *tensor.RawTensor // initialized to zeros
	RunningVar  *tensor.RawTensor // initialized to ones

	cfg      BatchNormConfig
	training bool
	backend  B
}

// NewBatchNorm creates a BatchNorm layer whose parameters and running
// averages have the given shape. The shape must hold as many elements as the
// input reduced over cfg.Axis.
//
// Eps and Decay are used as given, zero included; start from
// DefaultBatchNormConfig for the usual values. A nil Axis selects {0}.
func NewBatchNorm[B tensor.Backend](shape tensor.Shape, cfg BatchNormConfig, backend B) (*BatchNorm[B], error) {
	if cfg.Axis == nil {
		cfg.Axis = DefaultBatchNormConfig().Axis
	}
	if !cfg.DType.IsFloat() {
		return nil, errors.Wrapf(tensor.ErrDtype, "batch norm parameters must be floating, got %s", cfg.DType)
	}

	device := backend.Device()
	gamma, err := tensor.Ones(shape, cfg.DType, device)
	if err != nil {
		return nil, errors.WithMessage(err, "batch norm gamma")
	}
	beta, err := tensor.Zeros(shape, cfg.DType, device)
	if err != nil {
		return nil, errors.WithMessage(err, "batch norm beta")
	}
	runningMean, err := tensor.Zeros(shape, cfg.DType, device)
	if err != nil {
		return nil, errors.WithMessage(err, "batch norm running mean")
	}
	runningVar, err := tensor.Ones(shape, cfg.DType, device)
	if err != nil {
		return nil, errors.WithMessage(err, "batch norm running variance")
	}

	return &BatchNorm[B]{
		Gamma:       NewParameter("gamma", gamma),
		Beta:        NewParameter("beta", beta),
		RunningMean: runningMean,
		RunningVar:  runningVar,
		cfg:         cfg,
		training:    true,
		backend:     backend,
	}, nil
}

// Forward normalizes x.
//
// The output has the shape and dtype of x.
func (l *BatchNorm[B]) Forward(x *tensor.RawTensor) (*tensor.RawTensor, error) {
	if !l.training {
		return normalization.FixedBatchNorm(l.backend, x, l.Gamma.Tensor(), l.Beta.Tensor(),
			l.RunningMean, l.RunningVar, l.cfg.Eps, l.cfg.Axis)
	}
	out, err := normalization.BatchNorm(l.backend, x, l.Gamma.Tensor(), l.Beta.Tensor(),
		l.RunningMean, l.RunningVar, l.cfg.Eps, l.cfg.Decay, l.cfg.Axis)
	if err != nil {
		return nil, err
	}
	klog.V(3).Infof("nn.BatchNorm: normalized %s over axes %v", x, l.cfg.Axis)
	return out, nil
}

// Parameters returns the learnable parameters (gamma and beta).
func (l *BatchNorm[B]) Parameters() []*Parameter {
	return []*Parameter{l.Gamma, l.Beta}
}

// Train switches the layer to training mode.
func (l *BatchNorm[B]) Train() {
	l.training = true
}

// Eval switches the layer to evaluation mode.
func (l *BatchNorm[B]) Eval() {
	l.training = false
}

// Training reports whether the layer is in training mode.
func (l *BatchNorm[B]) Training() bool {
	return l.training
}

// Config returns the layer configuration.
func (l *BatchNorm[B]) Config() BatchNormConfig {
	return l.cfg
}

// StateDict returns copies of gamma, beta and the running averages, keyed
// "gamma", "beta", "avg_mean" and "avg_var".
func (l *BatchNorm[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma":    l.Gamma.Tensor().Copy(),
		"beta":     l.Beta.Tensor().Copy(),
		"avg_mean": l.RunningMean.Copy(),
		"avg_var":  l.RunningVar.Copy(),
	}
}

// LoadStateDict copies tensors saved by StateDict into the layer, converting
// them to the layer's dtype.
//
// Every key must be present. Returns an error wrapping tensor.ErrDimension if
// a shape doesn't match; nothing is loaded in that case.
func (l *BatchNorm[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	targets := map[string]*tensor.RawTensor{
		"gamma":    l.Gamma.Tensor(),
		"beta":     l.Beta.Tensor(),
		"avg_mean": l.RunningMean,
		"avg_var":  l.RunningVar,
	}
	for name, dst := range targets {
		src, ok := stateDict[name]
		if !ok {
			return errors.Errorf("batch norm state: missing %q", name)
		}
		if !src.Shape().Equal(dst.Shape()) {
			return errors.Wrapf(tensor.ErrDimension, "batch norm state %q: expected shape %v, got %v",
				name, dst.Shape(), src.Shape())
		}
		if !src.DType().IsFloat() {
			return errors.Wrapf(tensor.ErrDtype, "batch norm state %q: got %s", name, src.DType())
		}
	}
	for name, dst := range targets {
		l.backend.CastInto(stateDict[name], dst)
	}
	return nil
}
