// Package frames holds the decoded intensity frames that feed the scan
// pipeline, conversions from image.Image, and frame sources.
package frames

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Frame is a decoded 2-D intensity image stored row-major.
//
// A frame handed to the pipeline must not be mutated afterwards; use Clone
// to derive a writable copy.
type Frame struct {
	Pixels   []float64
	Width    int
	Height   int
	BitDepth int

	Timestamp time.Time
	Seq       uint64

	// Origin is the offset of this frame inside the source frame it was
	// cropped from. Zero for an uncropped frame.
	Origin image.Point

	// SourceWidth and SourceHeight are the dimensions of the uncropped
	// source. Zero means the frame is its own source.
	SourceWidth  int
	SourceHeight int

	// sourceMax is the maximum of the uncropped source, set by Crop.
	sourceMax    float64
	hasSourceMax bool
}

// New wraps pixels as a w×h frame. len(pixels) must equal w*h.
func New(w, h, bitDepth int, pixels []float64) (*Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %dx%d", w, h)
	}
	if len(pixels) != w*h {
		return nil, fmt.Errorf("frame has %d pixels, want %d for %dx%d", len(pixels), w*h, w, h)
	}
	return &Frame{Pixels: pixels, Width: w, Height: h, BitDepth: bitDepth}, nil
}

// Uniform returns a w×h frame with every pixel set to v.
func Uniform(w, h int, v float64) *Frame {
	px := make([]float64, w*h)
	for i := range px {
		px[i] = v
	}
	return &Frame{Pixels: px, Width: w, Height: h, BitDepth: 16}
}

// At returns the intensity at (x, y). Coordinates must be in range.
func (f *Frame) At(x, y int) float64 {
	return f.Pixels[y*f.Width+x]
}

// Area is Width*Height.
func (f *Frame) Area() int { return f.Width * f.Height }

// SourceArea is the pixel area of the uncropped source frame.
func (f *Frame) SourceArea() int {
	if f.SourceWidth <= 0 || f.SourceHeight <= 0 {
		return f.Area()
	}
	return f.SourceWidth * f.SourceHeight
}

// Clone returns a deep copy of f.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pixels = make([]float64, len(f.Pixels))
	copy(c.Pixels, f.Pixels)
	return &c
}

// Max returns the largest pixel value, or 0 for an empty frame.
func (f *Frame) Max() float64 {
	if len(f.Pixels) == 0 {
		return 0
	}
	return floats.Max(f.Pixels)
}

// SourceMax returns the largest pixel value of the uncropped source frame.
// For a frame that was never cropped it is Max.
func (f *Frame) SourceMax() float64 {
	if f.hasSourceMax {
		return f.sourceMax
	}
	return f.Max()
}

// Crop returns the part of f inside r, clipped to the frame. The result
// records its Origin and source size so geometries given in source
// coordinates can be translated onto it. ok is false when r does not
// overlap the frame.
func (f *Frame) Crop(r image.Rectangle) (cropped *Frame, ok bool) {
	r = r.Intersect(image.Rect(0, 0, f.Width, f.Height))
	if r.Empty() {
		return nil, false
	}
	if r.Min.X == 0 && r.Min.Y == 0 && r.Dx() == f.Width && r.Dy() == f.Height {
		return f, true
	}

	w, h := r.Dx(), r.Dy()
	px := make([]float64, w*h)
	for y := 0; y < h; y++ {
		src := (r.Min.Y+y)*f.Width + r.Min.X
		copy(px[y*w:(y+1)*w], f.Pixels[src:src+w])
	}

	sw, sh := f.SourceWidth, f.SourceHeight
	if sw <= 0 || sh <= 0 {
		sw, sh = f.Width, f.Height
	}
	return &Frame{
		Pixels:       px,
		Width:        w,
		Height:       h,
		BitDepth:     f.BitDepth,
		Timestamp:    f.Timestamp,
		Seq:          f.Seq,
		Origin:       f.Origin.Add(r.Min),
		SourceWidth:  sw,
		SourceHeight: sh,
		sourceMax:    f.SourceMax(),
		hasSourceMax: true,
	}, true
}

// Downsample keeps every k-th pixel in both directions, producing a
// ceil(W/k)×ceil(H/k) frame. k <= 1 returns f itself. Origin, source size
// and SourceMax describe the full-resolution source and are carried over.
func (f *Frame) Downsample(k int) *Frame {
	if k <= 1 {
		return f
	}
	w := (f.Width + k - 1) / k
	h := (f.Height + k - 1) / k
	px := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := y * k * f.Width
		for x := 0; x < w; x++ {
			px[y*w+x] = f.Pixels[row+x*k]
		}
	}
	d := *f
	d.sourceMax, d.hasSourceMax = f.SourceMax(), true
	d.Pixels = px
	d.Width = w
	d.Height = h
	return &d
}

// MeanIntensity returns the mean pixel value of f. With normalize set the
// mean is divided by the frame maximum, and a frame whose maximum is 0
// yields 0.
func MeanIntensity(f *Frame, normalize bool) float64 {
	if f == nil || len(f.Pixels) == 0 {
		return 0
	}
	mean := floats.Sum(f.Pixels) / float64(len(f.Pixels))
	if !normalize {
		return mean
	}
	m := f.Max()
	if m == 0 {
		return 0
	}
	return mean / m
}

// FromGray converts an 8-bit grayscale image.
func FromGray(img *image.Gray) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	px := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x, v := range row {
			px[y*w+x] = float64(v)
		}
	}
	return &Frame{Pixels: px, Width: w, Height: h, BitDepth: 8}
}

// FromGray16 converts a 16-bit grayscale image.
func FromGray16(img *image.Gray16) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	px := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*img.Stride + x*2
			px[y*w+x] = float64(uint16(img.Pix[i])<<8 | uint16(img.Pix[i+1]))
		}
	}
	return &Frame{Pixels: px, Width: w, Height: h, BitDepth: 16}
}

// FromImage converts any image to intensity. Grayscale images keep their
// native depth; everything else is reduced to 16-bit luminosity
// 0.299R + 0.587G + 0.114B.
func FromImage(img image.Image) *Frame {
	switch v := img.(type) {
	case *image.Gray:
		return FromGray(v)
	case *image.Gray16:
		return FromGray16(v)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	px := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			px[y*w+x] = 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		}
	}
	return &Frame{Pixels: px, Width: w, Height: h, BitDepth: 16}
}
