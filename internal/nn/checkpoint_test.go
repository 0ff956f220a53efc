package nn_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/born-ml/batchnorm/internal/backend/cpu"
	"github.com/born-ml/batchnorm/internal/nn"
	"github.com/born-ml/batchnorm/internal/optim"
	"github.com/born-ml/batchnorm/internal/serialization"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ nn.Stateful = (*nn.BatchNorm[*cpu.CPUBackend])(nil)

func TestBatchNorm_StateDict(t *testing.T) {
	backend := cpu.New()
	bn := must.M1(nn.NewBatchNorm(tensor.Shape{2}, nn.DefaultBatchNormConfig(), backend))
	x := must.M1(tensor.FromFloat64s([]float64{1, 2, 3, 6}, tensor.Shape{2, 2}, tensor.Float32, tensor.CPU))
	must.M1(bn.Forward(x))

	state := bn.StateDict()
	require.Len(t, state, 4)
	assert.Equal(t, bn.RunningMean.AsFloat32(), state["avg_mean"].AsFloat32())
	assert.False(t, state["avg_mean"].SharesStorage(bn.RunningMean))

	// Float64 state loads into a float32 layer.
	restored := must.M1(nn.NewBatchNorm(tensor.Shape{2}, nn.DefaultBatchNormConfig(), backend))
	converted := make(map[string]*tensor.RawTensor, len(state))
	for name, raw := range state {
		converted[name] = backend.Cast(raw, tensor.Float64)
	}
	require.NoError(t, restored.LoadStateDict(converted))
	assert.Equal(t, bn.RunningMean.AsFloat32(), restored.RunningMean.AsFloat32())
	assert.Equal(t, bn.RunningVar.AsFloat32(), restored.RunningVar.AsFloat32())
	assert.Equal(t, tensor.Float32, restored.RunningVar.DType())
}

func TestBatchNorm_LoadStateDictErrors(t *testing.T) {
	bn := must.M1(nn.NewBatchNorm(tensor.Shape{2}, nn.DefaultBatchNormConfig(), cpu.New()))
	state := bn.StateDict()

	wrongShape := bn.StateDict()
	wrongShape["avg_var"] = must.M1(tensor.Ones(tensor.Shape{3}, tensor.Float32, tensor.CPU))
	wrongShape["avg_mean"] = must.M1(tensor.Full(tensor.Shape{2}, tensor.Float32, 7, tensor.CPU))
	require.ErrorIs(t, bn.LoadStateDict(wrongShape), tensor.ErrDimension)
	assert.Equal(t, []float32{0, 0}, bn.RunningMean.AsFloat32(), "nothing loaded")

	wrongDType := bn.StateDict()
	wrongDType["gamma"] = must.M1(tensor.Ones(tensor.Shape{2}, tensor.Int32, tensor.CPU))
	require.ErrorIs(t, bn.LoadStateDict(wrongDType), tensor.ErrDtype)

	delete(state, "beta")
	require.Error(t, bn.LoadStateDict(state))
}

func TestCheckpoint_SaveLoad(t *testing.T) {
	backend := cpu.New()
	bn := must.M1(nn.NewBatchNorm(tensor.Shape{2}, nn.DefaultBatchNormConfig(), backend))
	x := must.M1(tensor.FromFloat64s([]float64{1, 2, 3, 6, 5, 1}, tensor.Shape{3, 2}, tensor.Float32, tensor.CPU))
	must.M1(bn.Forward(x))

	optimizer := optim.NewSGD(bn.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	optimizer.Step(map[*tensor.RawTensor]*tensor.RawTensor{
		bn.Gamma.Tensor(): must.M1(tensor.Full(tensor.Shape{2}, tensor.Float32, 0.5, tensor.CPU)),
	})

	path := filepath.Join(t.TempDir(), "bn.safetensors")
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	checkpoint := &nn.Checkpoint{
		Model: bn, Optimizer: optimizer,
		Epoch: 3, Step: 120, Loss: 0.25,
		Metadata:  map[string]string{"dataset": "random"},
		CreatedAt: created,
	}
	require.NoError(t, checkpoint.Save(path))

	restored := must.M1(nn.NewBatchNorm(tensor.Shape{2}, nn.DefaultBatchNormConfig(), backend))
	restoredOpt := optim.NewSGD(restored.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	loaded, err := nn.LoadCheckpoint(path, restored, restoredOpt)
	require.NoError(t, err)

	assert.Equal(t, 3, loaded.Epoch)
	assert.Equal(t, int64(120), loaded.Step)
	assert.Equal(t, 0.25, loaded.Loss)
	assert.True(t, created.Equal(loaded.CreatedAt))
	assert.Equal(t, map[string]string{"dataset": "random"}, loaded.Metadata)
	assert.Equal(t, bn.Gamma.Tensor().AsFloat32(), restored.Gamma.Tensor().AsFloat32())
	assert.Equal(t, bn.RunningMean.AsFloat32(), restored.RunningMean.AsFloat32())
	assert.Equal(t, bn.RunningVar.AsFloat32(), restored.RunningVar.AsFloat32())
	assert.Equal(t, optimizer.StateDict()["velocity.0"].AsFloat32(), restoredOpt.StateDict()["velocity.0"].AsFloat32())
}

func TestLoadCheckpoint_NotACheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.safetensors")
	bn := must.M1(nn.NewBatchNorm(tensor.Shape{2}, nn.DefaultBatchNormConfig(), cpu.New()))
	require.NoError(t, serialization.Save(path, bn.StateDict(), nil))

	_, err := nn.LoadCheckpoint(path, bn, nil)
	require.ErrorContains(t, err, "not a checkpoint")
}
