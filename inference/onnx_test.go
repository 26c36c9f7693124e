package inference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models/model"
)

func TestConfig_Validate(t *testing.T) {
	valid := Config{ModelPath: "model.onnx", Spec: model.NewSpec(80)}
	require.NoError(t, valid.Validate())

	missing := valid
	missing.ModelPath = ""
	assert.Error(t, missing.Validate())

	badSpec := valid
	badSpec.Spec.NumClasses = 0
	assert.Error(t, badSpec.Validate())

	badProvider := valid
	badProvider.Provider.Backend = "tpu"
	assert.ErrorIs(t, badProvider.Validate(), providers.ErrUnknownBackend)
}

func TestResolveSpec(t *testing.T) {
	spec := model.NewSpec(3)
	inputs := []ort.InputOutputInfo{{Name: "images", Dimensions: ort.NewShape(1, 3, 512, 512)}}

	t.Run("fixed output refines N", func(t *testing.T) {
		outputs := []ort.InputOutputInfo{{Name: "output0", Dimensions: ort.NewShape(1, 7, 2100)}}
		got, err := resolveSpec(spec, inputs, outputs)
		require.NoError(t, err)
		assert.Equal(t, 2100, got.Candidates)
	})

	t.Run("dynamic output keeps configured N", func(t *testing.T) {
		outputs := []ort.InputOutputInfo{{Name: "output0", Dimensions: ort.NewShape(1, 7, -1)}}
		got, err := resolveSpec(spec, inputs, outputs)
		require.NoError(t, err)
		assert.Equal(t, model.DefaultCandidates, got.Candidates)
	})

	t.Run("single io adopts model names", func(t *testing.T) {
		in := []ort.InputOutputInfo{{Name: "pixel_values", Dimensions: ort.NewShape(-1, 3, -1, -1)}}
		out := []ort.InputOutputInfo{{Name: "preds", Dimensions: ort.NewShape(1, 7, 100)}}
		got, err := resolveSpec(spec, in, out)
		require.NoError(t, err)
		assert.Equal(t, "pixel_values", got.InputName)
		assert.Equal(t, "preds", got.OutputName)
	})

	t.Run("class rows must match the table", func(t *testing.T) {
		outputs := []ort.InputOutputInfo{{Name: "output0", Dimensions: ort.NewShape(1, 84, 8400)}}
		_, err := resolveSpec(spec, inputs, outputs)
		assert.Error(t, err)
	})

	t.Run("input size must match", func(t *testing.T) {
		in := []ort.InputOutputInfo{{Name: "images", Dimensions: ort.NewShape(1, 3, 640, 640)}}
		outputs := []ort.InputOutputInfo{{Name: "output0", Dimensions: ort.NewShape(1, 7, 100)}}
		_, err := resolveSpec(spec, in, outputs)
		assert.Error(t, err)
	})

	t.Run("ambiguous names", func(t *testing.T) {
		outputs := []ort.InputOutputInfo{
			{Name: "boxes", Dimensions: ort.NewShape(1, 7, 100)},
			{Name: "scores", Dimensions: ort.NewShape(1, 7, 100)},
		}
		_, err := resolveSpec(spec, inputs, outputs)
		assert.Error(t, err)
	})
}

func TestONNXEngine_ClosedAndCancelled(t *testing.T) {
	e := &ONNXEngine{spec: model.NewSpec(3)}
	input := tensor.New(tensor.WithShape(1, 3, 2, 2), tensor.WithBacking(make([]float32, 12)))

	_, err := e.Predict(context.Background(), input)
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.NoError(t, e.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Predict(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
}
