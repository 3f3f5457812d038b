package classifier

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/tphakala/go-tflite"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// Engine runs a single forward pass of the disease model. Implementations need
// not be safe for concurrent use; the Classifier serializes calls.
type Engine interface {
	// InputLen is the number of float32 values in the input tensor
	InputLen() int
	// OutputLen is the size of the last output dimension (number of classes)
	OutputLen() int
	// Run copies input into the model, invokes it and returns the output scores
	Run(input []float32) ([]float32, error)
	Close()
}

// tfliteEngine runs a float32 TensorFlow Lite model.
type tfliteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputLen    int
	outputLen   int
}

// LoadTFLite loads the model at path and allocates its tensors.
func LoadTFLite(path string, threads int) (Engine, error) {
	start := time.Now()

	modelData, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", path).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", path).
			Context("model_size_mb", len(modelData)/1024/1024).
			Timing("model-init", time.Since(start)).
			Build()
	}

	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.Newf("cannot create interpreter").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", path).
			Build()
	}

	engine := &tfliteEngine{model: model, options: options, interpreter: interpreter}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		engine.Close()
		return nil, errors.Newf("tensor allocation failed: %v", status).
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", path).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	if input == nil || output == nil || output.NumDims() == 0 {
		engine.Close()
		return nil, errors.Newf("model has no usable input or output tensor").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", path).
			Build()
	}
	// Float32s is nil for quantized tensors
	if len(input.Float32s()) == 0 {
		engine.Close()
		return nil, errors.Newf("unsupported input tensor, want float32").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_path", path).
			Build()
	}

	engine.inputLen = len(input.Float32s())
	engine.outputLen = output.Dim(output.NumDims() - 1)

	GetLogger().Info("model loaded",
		logger.String("path", path),
		logger.Int("threads", threads),
		logger.Int("input_len", engine.inputLen),
		logger.Int("classes", engine.outputLen),
		logger.Duration("load_time", time.Since(start)))

	return engine, nil
}

func (e *tfliteEngine) InputLen() int  { return e.inputLen }
func (e *tfliteEngine) OutputLen() int { return e.outputLen }

func (e *tfliteEngine) Run(input []float32) ([]float32, error) {
	inputTensor := e.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(inputTensor.Float32s(), input)

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	out := make([]float32, e.outputLen)
	copy(out, e.interpreter.GetOutputTensor(0).Float32s())
	return out, nil
}

func (e *tfliteEngine) Close() {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
}
