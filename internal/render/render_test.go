package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	fonts, err := NewFonts()
	if err != nil {
		t.Fatal(err)
	}
	return NewRenderer(fonts)
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func isRed(img image.Image, x, y int) bool {
	r, g, b := rgbAt(img, x, y)
	return r > 200 && g < 60 && b < 60
}

func isWhite(img image.Image, x, y int) bool {
	r, g, b := rgbAt(img, x, y)
	return r > 245 && g > 245 && b > 245
}

func redRect(x, y, w, h, rot float64) *document.Rect {
	return &document.Rect{Base: document.Base{
		Geometry: document.Geometry{X: x, Y: y, W: w, H: h, Rot: rot},
		Style:    document.Style{Fill: "#ff0000"},
	}}
}

func TestRasterizeAppliesZoomOnce(t *testing.T) {
	r := newTestRenderer(t)
	p := document.NewPage(document.DefaultPreset)
	p.Add(redRect(100, 100, 200, 100, 0))

	dc, err := r.Rasterize(p, 0, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()
	img := dc.Image()

	if b := img.Bounds(); b.Dx() != 540 || b.Dy() != 675 {
		t.Fatalf("canvas = %dx%d, want 540x675", b.Dx(), b.Dy())
	}
	if !isRed(img, 100, 75) {
		t.Errorf("rect interior not red: %v", img.At(100, 75))
	}
	if !isWhite(img, 10, 10) || !isWhite(img, 200, 75) {
		t.Error("background not white outside the rect")
	}
}

func TestRasterizeRotatedShape(t *testing.T) {
	r := newTestRenderer(t)
	p := document.NewPage(document.DefaultPreset)
	// A 200x20 bar turned upright about (200,200).
	p.Add(redRect(100, 190, 200, 20, 90))

	dc, err := r.Rasterize(p, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()
	img := dc.Image()
	if !isRed(img, 200, 130) {
		t.Errorf("upright bar missing at (200,130): %v", img.At(200, 130))
	}
	if !isWhite(img, 130, 200) {
		t.Errorf("unrotated bar drawn at (130,200): %v", img.At(130, 200))
	}
}

func TestRasterizeTransparentFillSkipped(t *testing.T) {
	r := newTestRenderer(t)
	p := document.NewPage(document.DefaultPreset)
	o := redRect(100, 100, 200, 200, 0)
	o.Fill = "transparent"
	p.Add(o)

	dc, err := r.Rasterize(p, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()
	if !isWhite(dc.Image(), 200, 200) {
		t.Errorf("transparent fill painted: %v", dc.Image().At(200, 200))
	}
}

func TestRasterizeRotatedImage(t *testing.T) {
	r := newTestRenderer(t)
	var src bytes.Buffer
	if err := imaging.Encode(&src, imaging.New(40, 20, color.NRGBA{R: 255, A: 255}), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	h, err := document.DecodeImage(src.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	img := document.NewImageObject(h, 1)
	img.Geometry = document.Geometry{X: 100, Y: 100, W: 40, H: 20, Rot: 90}
	p := document.NewPage(document.DefaultPreset)
	p.Add(img)

	dc, err := r.Rasterize(p, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()
	out := dc.Image()
	if !isRed(out, 120, 95) {
		t.Errorf("rotated image missing at (120,95): %v", out.At(120, 95))
	}
	if !isWhite(out, 103, 110) {
		t.Errorf("image drawn unrotated at (103,110): %v", out.At(103, 110))
	}
}

func TestRasterizeTextAndSelection(t *testing.T) {
	r := newTestRenderer(t)
	p := document.NewPage(document.DefaultPreset)
	txt := document.NewObject(document.KindText, 1).(*document.Text)
	txt.Geometry = document.Geometry{X: 0, Y: 0, W: 400, H: 100}
	txt.Content = "Hello there"
	p.Add(txt)

	dc, err := r.Rasterize(p, txt.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()
	out := dc.Image()

	dark := 0
	for y := 5; y < 60; y++ {
		for x := 5; x < 300; x++ {
			if r, g, b := rgbAt(out, x, y); r < 100 && g < 100 && b < 100 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Error("no glyph pixels in the text box")
	}

	// Corner handle of the selection overlay.
	if r, g, b := rgbAt(out, 400, 100); r > 100 || g < 150 || b < 150 {
		t.Errorf("selection handle colour = %d,%d,%d", r, g, b)
	}
}

func TestPNG(t *testing.T) {
	r := newTestRenderer(t)
	p := document.NewPage(document.Preset{Width: 64, Height: 32})
	p.Add(redRect(0, 0, 64, 32, 0))

	data, err := r.PNG(p, 2)
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 128 || b.Dy() != 64 {
		t.Errorf("png = %dx%d, want 128x64", b.Dx(), b.Dy())
	}
}

func TestExecuteErrors(t *testing.T) {
	r := newTestRenderer(t)
	if _, err := r.Execute(nil); !errors.Is(err, ErrNoClear) {
		t.Errorf("empty commands err = %v", err)
	}
	huge := []engine.DrawCommand{{Op: engine.OpClear, Zoom: 4, Width: 10000, Height: 10000, Fill: "#fff"}}
	if _, err := r.Execute(huge); !errors.Is(err, ErrTooLarge) {
		t.Errorf("huge page err = %v", err)
	}
}

func TestMeasureGrowsWithText(t *testing.T) {
	fonts, err := NewFonts()
	if err != nil {
		t.Fatal(err)
	}
	short := fonts.Measure("ab", "Inter", 40)
	long := fonts.Measure("abab", "Inter", 40)
	if short <= 0 || long <= short {
		t.Errorf("Measure = %g then %g", short, long)
	}
	if big := fonts.Measure("ab", "Inter", 80); big <= short {
		t.Errorf("size 80 measured %g, not wider than %g", big, short)
	}
}
