package imageprocessor

import (
	"image"
	"image/color"
)

// BytesPerPixel is the size of one packed RGB sample
const BytesPerPixel = 3

// Raster is a decoded image as packed 8-bit RGB, row-major, no padding
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRaster allocates a zeroed raster of the given size
func NewRaster(width, height int) *Raster {
	return &Raster{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*BytesPerPixel),
	}
}

// Stride returns the number of bytes in one row
func (r *Raster) Stride() int {
	return r.Width * BytesPerPixel
}

// Offset returns the index of pixel (x, y) in Pix
func (r *Raster) Offset(x, y int) int {
	return y*r.Stride() + x*BytesPerPixel
}

// Set stores an RGB value at (x, y)
func (r *Raster) Set(x, y int, red, green, blue uint8) {
	i := r.Offset(x, y)
	r.Pix[i] = red
	r.Pix[i+1] = green
	r.Pix[i+2] = blue
}

// RasterFromImage converts any decoded image into a packed RGB raster.
// Alpha is dropped; channel values are taken as stored where the image type
// allows it so that conversion stays exact for 8-bit sources.
func RasterFromImage(img image.Image) *Raster {
	b := img.Bounds()
	r := NewRaster(b.Dx(), b.Dy())

	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				red, green, blue := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				r.Set(x, y, red, green, blue)
			}
		}
	case *image.RGBA:
		for y := 0; y < r.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < r.Width; x++ {
				r.Set(x, y, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < r.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < r.Width; x++ {
				r.Set(x, y, row[x*4], row[x*4+1], row[x*4+2])
			}
		}
	case *image.Gray:
		for y := 0; y < r.Height; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < r.Width; x++ {
				r.Set(x, y, row[x], row[x], row[x])
			}
		}
	default:
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				cr, cg, cb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				r.Set(x, y, uint8(cr>>8), uint8(cg>>8), uint8(cb>>8))
			}
		}
	}

	return r
}
