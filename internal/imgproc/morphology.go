package imgproc

import "image"

// ThinDark shrinks dark regions by taking the maximum over a square kernel.
// On printed barcodes this separates bars fused by ink bleed.
func ThinDark(g *image.Gray, kernelSize, iterations int) *image.Gray {
	out := g
	for range iterations {
		out = dilate(out, kernelSize)
	}
	if out == g {
		return Clone(g)
	}
	return out
}

// ThickenDark grows dark regions by taking the minimum over a square kernel.
func ThickenDark(g *image.Gray, kernelSize, iterations int) *image.Gray {
	out := g
	for range iterations {
		out = erode(out, kernelSize)
	}
	if out == g {
		return Clone(g)
	}
	return out
}

// dilate expands bright regions.
func dilate(g *image.Gray, kernelSize int) *image.Gray {
	return rankFilter(g, kernelSize, func(a, b uint8) bool { return b > a })
}

// erode expands dark regions.
func erode(g *image.Gray, kernelSize int) *image.Gray {
	return rankFilter(g, kernelSize, func(a, b uint8) bool { return b < a })
}

func rankFilter(g *image.Gray, kernelSize int, better func(cur, cand uint8) bool) *image.Gray {
	if kernelSize <= 1 {
		return Clone(g)
	}
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	half := kernelSize / 2

	for y := range h {
		for x := range w {
			best := g.Pix[y*g.Stride+x]
			for ky := -half; ky <= half; ky++ {
				ny := y + ky
				if ny < 0 || ny >= h {
					continue
				}
				row := g.Pix[ny*g.Stride:]
				for kx := -half; kx <= half; kx++ {
					nx := x + kx
					if nx >= 0 && nx < w && better(best, row[nx]) {
						best = row[nx]
					}
				}
			}
			out.Pix[y*out.Stride+x] = best
		}
	}
	return out
}
