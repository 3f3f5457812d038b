// Package imageprep turns uploaded leaf photos into model input tensors.
//
// Images are decoded (JPEG, PNG, GIF, BMP, TIFF or WebP), resized to a square
// resolution with bilinear interpolation and laid out as a (1, H, W, 3) float32
// array scaled to [0, 1].
package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/image/draw"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// DefaultSize is the input resolution of the plant disease model.
const DefaultSize = 224

// channels is the number of color channels fed to the model
const channels = 3

// ErrDecode is wrapped by every error caused by unreadable image input.
var ErrDecode = errors.NewStd("input is not a readable image")

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the imageprep package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("imageprep")
	})
	return serviceLogger
}

// Tensor is a single preprocessed image in NHWC layout.
type Tensor struct {
	Data   []float32
	Height int
	Width  int
}

// Shape returns the tensor shape (1, H, W, 3).
func (t *Tensor) Shape() [4]int {
	return [4]int{1, t.Height, t.Width, channels}
}

// Preprocessor resizes and normalizes images to a fixed square resolution.
// It holds no mutable state and is safe for concurrent use.
type Preprocessor struct {
	size int
}

// New creates a Preprocessor for size x size inputs; size <= 0 uses DefaultSize.
func New(size int) *Preprocessor {
	if size <= 0 {
		size = DefaultSize
	}
	return &Preprocessor{size: size}
}

// Size returns the target edge length in pixels.
func (p *Preprocessor) Size() int {
	return p.size
}

// FromBytes decodes and preprocesses an in-memory image.
func (p *Preprocessor) FromBytes(data []byte) (*Tensor, error) {
	if len(data) == 0 {
		return nil, decodeError(ErrDecode, "empty input")
	}
	return p.FromReader(bytes.NewReader(data))
}

// FromFile decodes and preprocesses the image at path.
func (p *Preprocessor) FromFile(path string) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("imageprep").
			Category(errors.CategoryFileIO).
			Context("operation", "open_image").
			Build()
	}
	defer f.Close()
	return p.FromReader(f)
}

// FromReader decodes and preprocesses an image stream.
func (p *Preprocessor) FromReader(r io.Reader) (*Tensor, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, decodeError(fmt.Errorf("%w: %w", ErrDecode, err), "decode failed")
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, decodeError(ErrDecode, "image has no pixels")
	}

	GetLogger().Debug("image decoded",
		logger.String("format", format),
		logger.Int("width", bounds.Dx()),
		logger.Int("height", bounds.Dy()))

	return p.toTensor(img), nil
}

// toTensor scales img to the target size and normalizes each channel to [0, 1].
// Alpha is discarded; colors are kept non-premultiplied.
func (p *Preprocessor) toTensor(img image.Image) *Tensor {
	dst := image.NewNRGBA(image.Rect(0, 0, p.size, p.size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	data := make([]float32, p.size*p.size*channels)
	i := 0
	for y := 0; y < p.size; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+p.size*4]
		for x := 0; x < p.size; x++ {
			px := row[x*4 : x*4+4]
			data[i] = float32(px[0]) / 255.0
			data[i+1] = float32(px[1]) / 255.0
			data[i+2] = float32(px[2]) / 255.0
			i += channels
		}
	}

	return &Tensor{Data: data, Height: p.size, Width: p.size}
}

func decodeError(err error, reason string) error {
	return errors.New(err).
		Component("imageprep").
		Category(errors.CategoryImageDecode).
		Context("reason", reason).
		Build()
}
