package imgproc

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			g.Pix[y*g.Stride+x] = uint8(x * 255 / max(1, w-1))
		}
	}
	return g
}

func TestCatalogueOrder(t *testing.T) {
	assert.Equal(t, []string{
		"gray", "upscale_2x", "upscale_3x_sharpen", "thin_dark", "upscale_2x_thin_dark",
		"gamma_bright", "gamma_dark", "threshold_100", "threshold_160",
	}, Names())
}

func TestStrategies_Deterministic(t *testing.T) {
	src := gradient(20, 10)
	for _, s := range DefaultStrategies() {
		t.Run(s.Name, func(t *testing.T) {
			a := s.Apply(Clone(src))
			b := s.Apply(Clone(src))
			require.NotNil(t, a)
			assert.Equal(t, a.Pix, b.Pix)
		})
	}
}

func TestStrategies_DoNotMutateInput(t *testing.T) {
	src := gradient(16, 8)
	orig := Clone(src)
	for _, s := range DefaultStrategies() {
		_ = s.Apply(src)
		assert.Equal(t, orig.Pix, src.Pix, s.Name)
	}
}

func TestStrategies_ReturnFreshImage(t *testing.T) {
	src := gradient(16, 8)
	orig := Clone(src)
	for _, s := range DefaultStrategies() {
		out := s.Apply(src)
		require.NotSame(t, src, out, s.Name)
		for i := range out.Pix {
			out.Pix[i] = 0
		}
		assert.Equal(t, orig.Pix, src.Pix, s.Name)
	}
}

func TestClone_SubImage(t *testing.T) {
	src := gradient(16, 8)
	sub := src.SubImage(image.Rect(4, 2, 10, 6)).(*image.Gray)
	c := Clone(sub)
	assert.Equal(t, sub.Rect, c.Rect)
	assert.Equal(t, 6, c.Stride)
	for y := 2; y < 6; y++ {
		for x := 4; x < 10; x++ {
			assert.Equal(t, sub.GrayAt(x, y), c.GrayAt(x, y))
		}
	}
}

func TestUpscaleSizes(t *testing.T) {
	src := gradient(10, 5)
	s2, _ := Lookup(StrategyUpscale2x)
	assert.Equal(t, image.Rect(0, 0, 20, 10), s2.Apply(src).Bounds())
	s3, _ := Lookup(StrategyUpscale3xSharpen)
	assert.Equal(t, image.Rect(0, 0, 30, 15), s3.Apply(src).Bounds())
}

func TestGammaDirection(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 1, 1))
	src.Pix[0] = 100
	bright, _ := Lookup(StrategyGammaBright)
	dark, _ := Lookup(StrategyGammaDark)
	assert.Greater(t, bright.Apply(src).Pix[0], uint8(100))
	assert.Less(t, dark.Apply(src).Pix[0], uint8(100))
}

func TestThreshold(t *testing.T) {
	src := gradient(256, 1)
	out := Threshold(src, 160)
	for _, v := range out.Pix {
		assert.Contains(t, []uint8{0, 255}, v)
	}
	assert.Equal(t, uint8(0), out.Pix[159])
	assert.Equal(t, uint8(255), out.Pix[160])
}

func TestThinDark_ShrinksBar(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 9, 3))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	// dark bar 3px wide at columns 3..5
	for y := range 3 {
		for x := 3; x <= 5; x++ {
			g.Pix[y*g.Stride+x] = 0
		}
	}
	out := ThinDark(g, 3, 1)
	assert.Equal(t, uint8(255), out.Pix[3])
	assert.Equal(t, uint8(0), out.Pix[4])
	assert.Equal(t, uint8(255), out.Pix[5])

	thick := ThickenDark(g, 3, 1)
	assert.Equal(t, uint8(0), thick.Pix[2])
}

func TestResolve(t *testing.T) {
	all, err := Resolve(nil)
	require.NoError(t, err)
	assert.Len(t, all, 9)

	some, err := Resolve([]string{"threshold_160", "gray"})
	require.NoError(t, err)
	assert.Equal(t, "threshold_160", some[0].Name)

	_, err = Resolve([]string{"nope"})
	assert.Error(t, err)
}

func TestToGray(t *testing.T) {
	img := image.NewNRGBA(image.Rect(2, 2, 5, 4))
	g := ToGray(img)
	assert.Equal(t, image.Rect(0, 0, 3, 2), g.Bounds())
	assert.Nil(t, ToGray(nil))
}
