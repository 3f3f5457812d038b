// Package classifier maps preprocessed leaf images to plant disease labels
// using a TensorFlow Lite model.
//
// A model that fails to load at startup leaves the classifier in an
// unavailable state: every Predict call reports ErrModelUnavailable. A model
// whose output size disagrees with the label table is a fatal configuration
// error and New refuses to construct a classifier.
package classifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/krishisahay/krishisahay-go/internal/disease"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/imageprep"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

var (
	// ErrModelUnavailable is returned by Predict when no model was loaded.
	ErrModelUnavailable = errors.NewStd("disease model is not available")

	// ErrLabelOutOfRange is returned when the model selects an index outside the label table.
	ErrLabelOutOfRange = errors.NewStd("predicted index outside label table")
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the classifier package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("classifier")
	})
	return serviceLogger
}

// Recorder receives inference metrics.
type Recorder interface {
	RecordInference(d time.Duration, err error)
	RecordPrediction(label string)
	SetModelLoaded(loaded bool)
}

// Config describes where to find the model and labels.
type Config struct {
	ModelPath  string
	LabelsPath string // empty uses the embedded PlantVillage labels
	Threads    int
}

// Prediction is the result of classifying one image.
type Prediction struct {
	Index      int
	Label      string
	Confidence float32
}

// Classifier serializes inference on a single model instance.
type Classifier struct {
	mu       sync.Mutex
	engine   Engine
	labels   []string
	loadErr  error
	recorder Recorder
}

// New loads labels and the model described by cfg. A model load failure is
// logged and yields an unavailable classifier; label problems and a
// label/model size mismatch are returned as errors.
func New(cfg Config, recorder Recorder) (*Classifier, error) {
	labels, err := disease.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Context("labels_path", cfg.LabelsPath).
			Build()
	}

	engine, err := LoadTFLite(cfg.ModelPath, cfg.Threads)
	if err != nil {
		GetLogger().Error("disease model failed to load, predictions are disabled",
			logger.String("path", cfg.ModelPath),
			logger.Error(err))
		c := &Classifier{labels: labels, loadErr: err, recorder: recorder}
		c.recordModelLoaded(false)
		return c, nil
	}

	return NewWithEngine(engine, labels, recorder)
}

// NewWithEngine builds a classifier around an already loaded engine. The
// engine output size must equal the number of labels.
func NewWithEngine(engine Engine, labels []string, recorder Recorder) (*Classifier, error) {
	if err := validateModelAndLabels(engine, labels); err != nil {
		engine.Close()
		return nil, err
	}
	c := &Classifier{engine: engine, labels: labels, recorder: recorder}
	c.recordModelLoaded(true)
	return c, nil
}

// validateModelAndLabels checks that the number of labels matches the model's output size
func validateModelAndLabels(engine Engine, labels []string) error {
	if engine.OutputLen() != len(labels) {
		return errors.Newf("label count mismatch: model expects %d classes but label table has %d labels",
			engine.OutputLen(), len(labels)).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Context("expected_labels", engine.OutputLen()).
			Context("actual_labels", len(labels)).
			Build()
	}
	return nil
}

// Available reports whether a model is loaded.
func (c *Classifier) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine != nil
}

// Labels returns a copy of the label table.
func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

// InputLen returns the number of values the model expects, 0 when unavailable.
func (c *Classifier) InputLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		return 0
	}
	return c.engine.InputLen()
}

// Predict runs one forward pass and returns the highest scoring label.
// Ties resolve to the lowest index.
func (c *Classifier) Predict(tensor *imageprep.Tensor) (Prediction, error) {
	c.mu.Lock()
	if c.engine == nil {
		c.mu.Unlock()
		return Prediction{}, c.unavailableError()
	}
	if tensor == nil || len(tensor.Data) != c.engine.InputLen() {
		want := c.engine.InputLen()
		c.mu.Unlock()
		got := 0
		if tensor != nil {
			got = len(tensor.Data)
		}
		return Prediction{}, errors.Newf("input has %d values, model expects %d", got, want).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Build()
	}

	start := time.Now()
	scores, err := c.engine.Run(tensor.Data)
	elapsed := time.Since(start)
	c.mu.Unlock()

	c.recordInference(elapsed, err)
	if err != nil {
		return Prediction{}, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelInference).
			Timing("inference", elapsed).
			Build()
	}

	index := argmax(scores)
	if index < 0 || index >= len(c.labels) {
		return Prediction{}, errors.New(ErrLabelOutOfRange).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			Context("index", index).
			Context("labels", len(c.labels)).
			Build()
	}

	p := Prediction{Index: index, Label: c.labels[index], Confidence: scores[index]}
	if c.recorder != nil {
		c.recorder.RecordPrediction(p.Label)
	}

	GetLogger().Debug("prediction",
		logger.Int("index", p.Index),
		logger.String("label", p.Label),
		logger.Float32("confidence", p.Confidence),
		logger.Duration("inference_time", elapsed))

	return p, nil
}

// Close releases the model.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine != nil {
		c.engine.Close()
		c.engine = nil
	}
}

func (c *Classifier) unavailableError() error {
	err := ErrModelUnavailable
	if c.loadErr != nil {
		err = fmt.Errorf("%w: %w", ErrModelUnavailable, c.loadErr)
	}
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryModelLoad).
		Build()
}

// argmax returns the index of the first maximum in scores, -1 when empty.
func argmax(scores []float32) int {
	best := -1
	for i, v := range scores {
		if best < 0 || v > scores[best] {
			best = i
		}
	}
	return best
}

func (c *Classifier) recordInference(d time.Duration, err error) {
	if c.recorder != nil {
		c.recorder.RecordInference(d, err)
	}
}

func (c *Classifier) recordModelLoaded(loaded bool) {
	if c.recorder != nil {
		c.recorder.SetModelLoaded(loaded)
	}
}
