// Package render rasterizes engine draw commands with gogpu/gg.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/gogpu/gg"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
)

// MaxPixels caps the size of one rasterized page.
const MaxPixels = 8192 * 8192

var (
	ErrNoClear   = errors.New("draw commands must start with a clear")
	ErrTooLarge  = errors.New("page too large to rasterize")
	errEmptySize = errors.New("page has no area")
)

// Renderer turns draw commands into pixels. It is safe for concurrent use; each call gets its
// own gg context.
type Renderer struct {
	fonts *Fonts
}

// NewRenderer creates a renderer that sets text in the given fonts.
func NewRenderer(fonts *Fonts) *Renderer {
	return &Renderer{fonts: fonts}
}

// Measurer returns the text measurer matching what the renderer draws.
func (r *Renderer) Measurer() engine.Measurer {
	return r.fonts
}

// Rasterize draws one page, with the selection overlay if selected is non-zero. The caller owns
// the returned context and must Close it.
func (r *Renderer) Rasterize(p *document.Page, selected int, zoom float64) (*gg.Context, error) {
	return r.Execute(engine.CompileDrawCommands(p, selected, zoom, r.fonts))
}

// Execute runs a compiled command list. The first command must be a clear; it sizes the canvas
// and sets the zoom applied once to everything after it.
func (r *Renderer) Execute(cmds []engine.DrawCommand) (*gg.Context, error) {
	if len(cmds) == 0 || cmds[0].Op != engine.OpClear {
		return nil, ErrNoClear
	}
	bg := cmds[0]
	w := int(math.Round(bg.Width * bg.Zoom))
	h := int(math.Round(bg.Height * bg.Zoom))
	if w <= 0 || h <= 0 {
		return nil, errEmptySize
	}
	if w*h > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}

	dc := gg.NewContext(w, h)
	dc.ClearWithColor(gg.Hex(bg.Fill))
	for _, cmd := range cmds[1:] {
		if err := r.draw(dc, cmd, bg.Zoom); err != nil {
			_ = dc.Close()
			return nil, fmt.Errorf("draw %s #%d: %w", cmd.Op, cmd.ObjectID, err)
		}
	}
	return dc, nil
}

// PNG rasterizes the page without selection chrome and encodes it.
func (r *Renderer) PNG(p *document.Page, zoom float64) ([]byte, error) {
	dc, err := r.Rasterize(p, 0, zoom)
	if err != nil {
		return nil, err
	}
	defer dc.Close()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) draw(dc *gg.Context, cmd engine.DrawCommand, zoom float64) error {
	switch cmd.Op {
	case engine.OpText:
		return r.drawText(dc, cmd, zoom)
	case engine.OpImage:
		drawImage(dc, cmd, zoom)
		return nil
	}

	// Vector ops draw in the object's local frame: zoom first, then the frame.
	dc.Push()
	defer dc.Pop()
	dc.Identity()
	dc.Scale(zoom, zoom)
	dc.Transform(toGG(cmd.Matrix()))

	switch cmd.Op {
	case engine.OpRect:
		dc.DrawRoundedRectangle(0, 0, cmd.Width, cmd.Height, cmd.Radius)
		return paint(dc, cmd.Fill, cmd.Stroke, cmd.StrokeWidth)
	case engine.OpEllipse:
		dc.DrawEllipse(cmd.Width/2, cmd.Height/2, cmd.Width/2, cmd.Height/2)
		return paint(dc, cmd.Fill, cmd.Stroke, cmd.StrokeWidth)
	case engine.OpPolygon:
		polygon(dc, cmd.Points)
		return paint(dc, cmd.Fill, cmd.Stroke, cmd.StrokeWidth)
	case engine.OpLine:
		if len(cmd.Points) < 2 {
			return nil
		}
		dc.MoveTo(cmd.Points[0].X, cmd.Points[0].Y)
		for _, pt := range cmd.Points[1:] {
			dc.LineTo(pt.X, pt.Y)
		}
		return paint(dc, "", cmd.Stroke, cmd.StrokeWidth)
	case engine.OpSelection:
		dc.DrawRectangle(0, 0, cmd.Width, cmd.Height)
		if err := paint(dc, "", cmd.Stroke, cmd.StrokeWidth); err != nil {
			return err
		}
		for _, pt := range cmd.Points {
			dc.DrawCircle(pt.X, pt.Y, cmd.Radius)
			if err := paint(dc, cmd.Fill, "", 0); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", cmd.Op)
	}
}

func polygon(dc *gg.Context, pts []engine.Point) {
	if len(pts) == 0 {
		return
	}
	dc.MoveTo(pts[0].X, pts[0].Y)
	for _, pt := range pts[1:] {
		dc.LineTo(pt.X, pt.Y)
	}
	dc.ClosePath()
}

// paint fills then strokes the current path. A transparent fill or a zero stroke is skipped.
func paint(dc *gg.Context, fill, stroke string, width float64) error {
	doStroke := stroke != "" && width > 0
	if engine.HasFill(fill) {
		dc.SetHexColor(fill)
		var err error
		if doStroke {
			err = dc.FillPreserve()
		} else {
			err = dc.Fill()
		}
		if err != nil {
			return err
		}
	}
	if !doStroke {
		dc.ClearPath()
		return nil
	}
	dc.SetHexColor(stroke)
	dc.SetLineWidth(width)
	return dc.Stroke()
}

// toGG converts [a b c d e f] (x' = a·x + c·y + e) to gg's row layout.
func toGG(m engine.Matrix2D) gg.Matrix {
	return gg.Matrix{A: m[0], B: m[2], C: m[4], D: m[1], E: m[3], F: m[5]}
}

// --- Sprites ---
//
// Images and text are drawn upright into their own buffer at device scale, rotated with
// imaging and composited centred on the object. gg places both only by their axis-aligned
// corners, so rotation has to happen before compositing.

// objectCenter returns the device-space centre of the object's box.
func objectCenter(cmd engine.DrawCommand, zoom float64) (float64, float64) {
	x, y := cmd.Matrix().TransformPoint(cmd.Width/2, cmd.Height/2)
	return x * zoom, y * zoom
}

// rotation recovers the frame's rotation in degrees, clockwise on screen.
func rotation(cmd engine.DrawCommand) float64 {
	m := cmd.Matrix()
	return math.Atan2(m[1], m[0]) * 180 / math.Pi
}

func composite(dc *gg.Context, sprite image.Image, cx, cy, rot float64) {
	if math.Abs(rot) > 1e-9 {
		// imaging rotates counter-clockwise.
		sprite = imaging.Rotate(sprite, -rot, color.Transparent)
	}
	b := sprite.Bounds()
	dc.Push()
	defer dc.Pop()
	dc.Identity()
	dc.DrawImageEx(gg.ImageBufFromImage(sprite), gg.DrawImageOptions{
		X: math.Round(cx - float64(b.Dx())/2),
		Y: math.Round(cy - float64(b.Dy())/2),
	})
}

func drawImage(dc *gg.Context, cmd engine.DrawCommand, zoom float64) {
	if cmd.Image == nil {
		return
	}
	w := int(math.Round(cmd.Width * zoom))
	h := int(math.Round(cmd.Height * zoom))
	if w <= 0 || h <= 0 {
		return
	}
	cx, cy := objectCenter(cmd, zoom)
	composite(dc, imaging.Resize(cmd.Image, w, h, imaging.Lanczos), cx, cy, rotation(cmd))
}

func (r *Renderer) drawText(dc *gg.Context, cmd engine.DrawCommand, zoom float64) error {
	if !engine.HasFill(cmd.Fill) || len(cmd.Lines) == 0 || cmd.FontSize <= 0 {
		return nil
	}
	size := cmd.FontSize * zoom
	face := r.fonts.Face(size)

	// The sprite is centred on the box and grows symmetrically to hold overflowing lines.
	halfW, halfH := cmd.Width/2, cmd.Height/2
	starts := make([]float64, len(cmd.Lines))
	for i, ln := range cmd.Lines {
		lw := r.fonts.Measure(ln.Text, cmd.Font, cmd.FontSize)
		start := ln.X
		switch cmd.Align {
		case document.AlignCenter:
			start -= lw / 2
		case document.AlignRight:
			start -= lw
		}
		starts[i] = start
		halfW = math.Max(halfW, math.Max(cmd.Width/2-start, start+lw-cmd.Width/2))
	}
	last := cmd.Lines[len(cmd.Lines)-1]
	halfH = math.Max(halfH, last.Y+r.fonts.Descent(cmd.FontSize)-cmd.Height/2)

	sw := int(math.Ceil(2 * halfW * zoom))
	sh := int(math.Ceil(2 * halfH * zoom))
	if sw <= 0 || sh <= 0 || sw*sh > MaxPixels {
		return nil
	}
	ox := (halfW - cmd.Width/2) * zoom
	oy := (halfH - cmd.Height/2) * zoom

	sprite := gg.NewContext(sw, sh)
	defer sprite.Close()
	sprite.SetFont(face)
	sprite.SetHexColor(cmd.Fill)
	for i, ln := range cmd.Lines {
		sprite.DrawString(ln.Text, ox+starts[i]*zoom, oy+ln.Y*zoom)
	}

	cx, cy := objectCenter(cmd, zoom)
	composite(dc, sprite.Image(), cx, cy, rotation(cmd))
	return nil
}
