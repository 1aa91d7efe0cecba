package ocr

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// minOCRDim is the smallest dimension, in pixels, Tesseract handles well.
// Smaller captures are upscaled before recognition.
const minOCRDim = 150

// prepareForOCR converts a capture to a clean black-on-white grayscale
// bitmap: upscale small regions, then binarize with an Otsu threshold and
// flip light-on-dark text.
func prepareForOCR(img image.Image) image.Image {
	img = upscale(img)
	gray := toGray(img)

	threshold := otsuThreshold(gray)
	binarize(gray, threshold)

	if meanValue(gray) < 128 {
		invert(gray)
	}
	return gray
}

func upscale(img image.Image) image.Image {
	b := img.Bounds()
	minDim := b.Dx()
	if b.Dy() < minDim {
		minDim = b.Dy()
	}
	if minDim >= minOCRDim || minDim == 0 {
		return img
	}
	scale := float64(minOCRDim) / float64(minDim)
	dst := image.NewRGBA(image.Rect(0, 0,
		int(float64(b.Dx())*scale+0.5), int(float64(b.Dy())*scale+0.5)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	return gray
}

// otsuThreshold picks the threshold maximizing between-class variance over
// the gray histogram.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	total := 0
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride : (y-b.Min.Y)*gray.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
		total += b.Dx()
	}
	if total == 0 {
		return 128
	}

	var sum float64
	for v, n := range hist {
		sum += float64(v) * float64(n)
	}

	var sumBg, wBg float64
	best, bestVar := uint8(128), -1.0
	for t := 0; t < 256; t++ {
		wBg += float64(hist[t])
		if wBg == 0 {
			continue
		}
		wFg := float64(total) - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(t) * float64(hist[t])
		meanBg := sumBg / wBg
		meanFg := (sum - sumBg) / wFg
		between := wBg * wFg * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			best = uint8(t)
		}
	}
	return best
}

func binarize(gray *image.Gray, threshold uint8) {
	for i, v := range gray.Pix {
		if v > threshold {
			gray.Pix[i] = 255
		} else {
			gray.Pix[i] = 0
		}
	}
}

func meanValue(gray *image.Gray) float64 {
	if len(gray.Pix) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range gray.Pix {
		sum += uint64(v)
	}
	return float64(sum) / float64(len(gray.Pix))
}

func invert(gray *image.Gray) {
	for i, v := range gray.Pix {
		gray.Pix[i] = 255 - v
	}
}

func cropImage(img image.Image, region image.Rectangle) image.Image {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(region)
	}
	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	for y := 0; y < region.Dy(); y++ {
		for x := 0; x < region.Dx(); x++ {
			dst.Set(x, y, img.At(region.Min.X+x, region.Min.Y+y))
		}
	}
	return dst
}
