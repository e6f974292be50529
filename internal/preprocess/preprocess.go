// Package preprocess turns uploaded image bytes into the float tensor the eye
// classifier consumes.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrDecode marks input that is not a decodable image.
var ErrDecode = errors.New("unsupported or corrupt image")

// DefaultMaxPixels bounds the declared size of an upload before its pixel
// buffer is allocated.
const DefaultMaxPixels = 40_000_000

// Options describe the tensor expected by the model.
type Options struct {
	Size int
	// Scale and Offset map an 8-bit value v to v/Scale + Offset.
	Scale  float32
	Offset float32
	// ChannelsFirst selects NCHW instead of NHWC.
	ChannelsFirst bool
	// MaxPixels caps width*height of decoded images; zero means DefaultMaxPixels.
	MaxPixels int
}

// Decode accepts JPEG, PNG, BMP and WebP. The header is checked against
// maxPixels before the image body is decoded.
func Decode(data []byte, maxPixels int) (image.Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxPixels/cfg.Height {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrDecode)
	}
	return img, format, nil
}

// Fit center-crops img to a square and resizes it to size x size with Lanczos3.
func Fit(img image.Image, size int) image.Image {
	return resize.Resize(uint(size), uint(size), CenterSquare(img), resize.Lanczos3)
}

// CenterSquare returns the largest centered square region of img.
func CenterSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := min(b.Dx(), b.Dy())
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	rect := image.Rect(x0, y0, x0+side, y0+side)
	if rect == b {
		return img
	}

	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// Opaque copies img into an RGBA with every alpha set to 255, keeping the
// straight (non-premultiplied) colour of transparent pixels.
func Opaque(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return dst
}

// Normalize applies the affine pixel transform to one channel value.
func (o Options) Normalize(v float32) float32 {
	return v/o.Scale + o.Offset
}

// Tensor converts img (already o.Size square) into a single-image batch.
// Alpha is ignored; Prepare flattens to opaque before resizing.
func (o Options) Tensor(img image.Image) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			rgb := [3]float32{
				o.Normalize(float32(c.R)),
				o.Normalize(float32(c.G)),
				o.Normalize(float32(c.B)),
			}

			pixel := y*width + x
			for ch, v := range rgb {
				if o.ChannelsFirst {
					data[ch*plane+pixel] = v
				} else {
					data[pixel*3+ch] = v
				}
			}
		}
	}
	return data
}

// Prepare decodes data and returns the model input plus the fitted image.
func (o Options) Prepare(data []byte) ([]float32, image.Image, error) {
	img, _, err := Decode(data, o.MaxPixels)
	if err != nil {
		return nil, nil, err
	}
	fitted := Fit(Opaque(img), o.Size)
	return o.Tensor(fitted), fitted, nil
}
