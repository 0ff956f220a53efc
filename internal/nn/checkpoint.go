package nn

import (
	"strconv"
	"strings"
	"time"

	"github.com/born-ml/batchnorm/internal/serialization"
	"github.com/born-ml/batchnorm/internal/tensor"
	"github.com/pkg/errors"
)

// Stateful is a model whose state can be saved and restored.
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// OptimizerState represents an optimizer that can save/load its state.
//
// Optimizers from the optim package implement this interface.
type OptimizerState interface {
	Stateful

	// GetLR returns the current learning rate.
	GetLR() float64
}

// Checkpoint is a training state snapshot: model tensors, optimizer buffers
// and training counters.
//
// Example:
//
//	checkpoint := &nn.Checkpoint{Model: bn, Optimizer: optimizer, Epoch: 10}
//	err := checkpoint.Save("bn.safetensors")
//
// To resume training:
//
//	checkpoint, err := nn.LoadCheckpoint("bn.safetensors", bn, optimizer)
//	startEpoch := checkpoint.Epoch + 1
type Checkpoint struct {
	Model     Stateful
	Optimizer OptimizerState    // optional
	Epoch     int               // training epoch number
	Step      int64             // training step number
	Loss      float64           // loss value at this checkpoint
	Metadata  map[string]string // additional training metadata
	CreatedAt time.Time
}

const (
	optimizerPrefix = "optimizer."
	metaPrefix      = "train."
)

// Save writes the checkpoint to path as a SafeTensors file. Counters are
// stored in the metadata entry.
func (c *Checkpoint) Save(path string) error {
	tensors := make(map[string]*tensor.RawTensor)
	for name, raw := range c.Model.StateDict() {
		tensors[name] = raw
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	metadata := map[string]string{
		"format":     "checkpoint",
		"epoch":      strconv.Itoa(c.Epoch),
		"step":       strconv.FormatInt(c.Step, 10),
		"loss":       strconv.FormatFloat(c.Loss, 'g', -1, 64),
		"created_at": createdAt.Format(time.RFC3339),
	}
	if c.Optimizer != nil {
		for name, raw := range c.Optimizer.StateDict() {
			tensors[optimizerPrefix+name] = raw
		}
		metadata["lr"] = strconv.FormatFloat(c.Optimizer.GetLR(), 'g', -1, 64)
	}
	for key, value := range c.Metadata {
		metadata[metaPrefix+key] = value
	}

	if err := serialization.Save(path, tensors, metadata); err != nil {
		return errors.WithMessage(err, "failed to write checkpoint")
	}
	return nil
}

// LoadCheckpoint reads a checkpoint written by Checkpoint.Save and restores
// its state into model and, if not nil, optimizer. Both must be built with
// the shapes they had when saved.
func LoadCheckpoint(path string, model Stateful, optimizer OptimizerState) (*Checkpoint, error) {
	tensors, metadata, err := serialization.Load(path)
	if err != nil {
		return nil, err
	}
	if metadata["format"] != "checkpoint" {
		return nil, errors.Errorf("%s is not a checkpoint", path)
	}

	modelState := make(map[string]*tensor.RawTensor)
	optimizerState := make(map[string]*tensor.RawTensor)
	for name, raw := range tensors {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerState[rest] = raw
		} else {
			modelState[name] = raw
		}
	}
	if err := model.LoadStateDict(modelState); err != nil {
		return nil, errors.WithMessage(err, "failed to load model state")
	}
	if optimizer != nil {
		if err := optimizer.LoadStateDict(optimizerState); err != nil {
			return nil, errors.WithMessage(err, "failed to load optimizer state")
		}
	}

	c := &Checkpoint{Model: model, Optimizer: optimizer, Metadata: make(map[string]string)}
	if c.Epoch, err = strconv.Atoi(metadata["epoch"]); err != nil {
		return nil, errors.Wrap(err, "checkpoint epoch")
	}
	if c.Step, err = strconv.ParseInt(metadata["step"], 10, 64); err != nil {
		return nil, errors.Wrap(err, "checkpoint step")
	}
	if c.Loss, err = strconv.ParseFloat(metadata["loss"], 64); err != nil {
		return nil, errors.Wrap(err, "checkpoint loss")
	}
	if c.CreatedAt, err = time.Parse(time.RFC3339, metadata["created_at"]); err != nil {
		return nil, errors.Wrap(err, "checkpoint created_at")
	}
	for key, value := range metadata {
		if rest, ok := strings.CutPrefix(key, metaPrefix); ok {
			c.Metadata[rest] = value
		}
	}
	return c, nil
}
