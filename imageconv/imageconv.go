// Package imageconv turns platform images into engine-ready RGBA8 buffers.
//
// Output is always four bytes per pixel in R, G, B, A order, straight (non-premultiplied) alpha,
// rows top to bottom with a stride of exactly 4*width and no padding.
package imageconv

import (
	"errors"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"gameservices/core"
)

var ErrEmptyImage = errors.New("image has no pixels")

// ToPixelBuffer converts img. When maxSize > 0 and either side exceeds it, the image is first
// scaled down preserving aspect ratio.
func ToPixelBuffer(img image.Image, maxSize int) (core.PixelBuffer, error) {
	if img == nil {
		return core.PixelBuffer{}, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Empty() {
		return core.PixelBuffer{}, ErrEmptyImage
	}
	if maxSize > 0 && (b.Dx() > maxSize || b.Dy() > maxSize) {
		img = scale(img, maxSize)
		b = img.Bounds()
	}

	w, h := b.Dx(), b.Dy()
	out := core.PixelBuffer{
		Width:  w,
		Height: h,
		Stride: 4 * w,
		Format: core.PixelFormatRGBA8,
		Data:   make([]byte, 4*w*h),
	}

	switch src := img.(type) {
	case *image.NRGBA:
		copyNRGBA(out.Data, src)
	case *image.RGBA:
		unpremultiplyRGBA(out.Data, src)
	default:
		convertGeneric(out.Data, img)
	}
	return out, nil
}

// copyNRGBA copies rows; the source may be a sub-image with a larger stride.
func copyNRGBA(dst []byte, src *image.NRGBA) {
	b := src.Bounds()
	rowLen := 4 * b.Dx()
	for y := 0; y < b.Dy(); y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(dst[y*rowLen:(y+1)*rowLen], src.Pix[off:off+rowLen])
	}
}

func unpremultiplyRGBA(dst []byte, src *image.RGBA) {
	b := src.Bounds()
	rowLen := 4 * b.Dx()
	for y := 0; y < b.Dy(); y++ {
		off := src.PixOffset(b.Min.X, b.Min.Y+y)
		row := src.Pix[off : off+rowLen]
		out := dst[y*rowLen : (y+1)*rowLen]
		for i := 0; i < rowLen; i += 4 {
			r, g, bl, a := row[i], row[i+1], row[i+2], row[i+3]
			switch a {
			case 0:
				out[i], out[i+1], out[i+2], out[i+3] = 0, 0, 0, 0
			case 0xff:
				out[i], out[i+1], out[i+2], out[i+3] = r, g, bl, a
			default:
				out[i] = unpremultiply(r, a)
				out[i+1] = unpremultiply(g, a)
				out[i+2] = unpremultiply(bl, a)
				out[i+3] = a
			}
		}
	}
}

// unpremultiply rounds to nearest and clamps channels that exceed alpha in malformed input.
func unpremultiply(c, a uint8) uint8 {
	v := (uint32(c)*0xff + uint32(a)/2) / uint32(a)
	if v > 0xff {
		v = 0xff
	}
	return uint8(v)
}

func convertGeneric(dst []byte, img image.Image) {
	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst[i], dst[i+1], dst[i+2], dst[i+3] = c.R, c.G, c.B, c.A
			i += 4
		}
	}
}

// scale resamples in premultiplied space so transparent edges do not bleed colour.
func scale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = max(1, h*maxSize/w)
		w = maxSize
	} else {
		w = max(1, w*maxSize/h)
		h = maxSize
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
