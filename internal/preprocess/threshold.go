package preprocess

import (
	"errors"
	"fmt"
	"image"
	"math"
)

const (
	// DefaultBlockSize is the neighbourhood size used for the local threshold.
	DefaultBlockSize = 31
	// DefaultOffset is subtracted from the local mean.
	DefaultOffset = 2
)

// ErrInvalidBlockSize is returned when the block size is not an odd number above 1.
var ErrInvalidBlockSize = errors.New("block size must be odd and greater than 1")

// Binarizer turns page images into black and white images using a Gaussian
// adaptive threshold.
type Binarizer struct {
	BlockSize int
	Offset    float64
}

// DefaultBinarizer returns a Binarizer with block size 31 and offset 2.
func DefaultBinarizer() Binarizer {
	return Binarizer{BlockSize: DefaultBlockSize, Offset: DefaultOffset}
}

// Apply converts img to grayscale and binarizes it.
func (b Binarizer) Apply(img image.Image) (*image.Gray, error) {
	return AdaptiveThreshold(img, b.BlockSize, b.Offset)
}

// AdaptiveThreshold binarizes img against a Gaussian-weighted local mean.
//
// A pixel becomes 255 when it is brighter than the rounded local mean minus
// ceil(offset), otherwise 0. Borders replicate the edge pixels. The result is
// a new image; img is not modified.
func AdaptiveThreshold(img image.Image, blockSize int, offset float64) (*image.Gray, error) {
	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}

	src := Gray(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst, nil
	}

	kernel := gaussianKernel(blockSize)
	mean := gaussianBlur(src, w, h, kernel)
	delta := int(math.Ceil(offset))

	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w]
		drow := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		mrow := mean[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			if int(srow[x])-int(mrow[x]) > -delta {
				drow[x] = 255
			}
		}
	}
	return dst, nil
}

// gaussianKernel returns a normalized 1-D kernel with the sigma OpenCV derives from the size.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*((float64(size)-1)*0.5-1) + 0.8
	half := size / 2
	k := make([]float64, size)
	var sum float64
	for i := range k {
		x := float64(i - half)
		k[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianBlur applies the separable kernel and rounds the result to 8 bits.
func gaussianBlur(src *image.Gray, w, h int, kernel []float64) []uint8 {
	half := len(kernel) / 2
	tmp := make([]float64, w*h)

	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w]
		for x := 0; x < w; x++ {
			var acc float64
			for i, kv := range kernel {
				acc += kv * float64(row[clamp(x+i-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for i, kv := range kernel {
				acc += kv * tmp[clamp(y+i-half, h)*w+x]
			}
			out[y*w+x] = uint8(math.Min(255, math.Max(0, math.Round(acc))))
		}
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
