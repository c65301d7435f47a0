package geometry

import (
	"image"

	"github.com/disintegration/imaging"
)

// Fixed-point luma weights used by OpenCV for RGB2GRAY (sum is 1<<14).
const (
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaShift = 14
)

// Grayscale converts a colour image into a single channel image using the
// 0.299/0.587/0.114 luma weights. Alpha is ignored.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return compact(g, g.Bounds())
	}

	src := imaging.Clone(img)
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x := range out {
			r := uint32(row[x*4])
			g := uint32(row[x*4+1])
			bl := uint32(row[x*4+2])
			out[x] = uint8((r*lumaR + g*lumaG + bl*lumaB + 1<<(lumaShift-1)) >> lumaShift)
		}
	}
	return dst
}

// ExtractROI copies img[y:y+height, x:x+width]. Parts of the box outside the
// image are clipped without error; a box entirely outside yields an empty image.
func ExtractROI(img *image.Gray, box PixelBox) *image.Gray {
	if box.Width <= 0 || box.Height <= 0 {
		return image.NewGray(image.Rectangle{})
	}
	b := img.Bounds()
	r := box.Rect().Add(b.Min).Intersect(b)
	return compact(img, r)
}

// compact copies region r of img into a new image whose origin is 0,0 and
// whose stride equals its width.
func compact(img *image.Gray, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		off := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], img.Pix[off:off+r.Dx()])
	}
	return dst
}
