package engine

import (
	"encoding/json"
	"image"
	"math"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
)

// Draw ops.
const (
	OpClear     = "clear"
	OpRect      = "rect"
	OpEllipse   = "ellipse"
	OpPolygon   = "polygon"
	OpLine      = "line"
	OpText      = "text"
	OpImage     = "image"
	OpSelection = "selection"
)

const (
	// CornerRadius rounds rectangle corners, shrunk to fit small boxes.
	CornerRadius = 12
	// SelectionColor outlines the selected object and fills its corner dots.
	SelectionColor = "#22d3ee"
	// SelectionWidth is the outline width in page units.
	SelectionWidth = 2
	// HandleRadius is the radius of the corner dots.
	HandleRadius = 5
	// Background fills the page before any object is drawn.
	Background = "#ffffff"
)

// Point is a vertex in an object's local frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DrawCommand represents a single drawing operation for a rasterizer to execute.
// The clear command carries the zoom and the page size; every other command is expressed in the
// object's local frame (0,0)-(Width,Height), placed by Transform in page space.
type DrawCommand struct {
	Op          string         `json:"op"`
	ObjectID    int            `json:"objectId,omitempty"`  // For hit correlation
	Transform   []float64      `json:"transform,omitempty"` // [a, b, c, d, e, f] affine matrix
	Zoom        float64        `json:"zoom,omitempty"`
	Width       float64        `json:"width"`
	Height      float64        `json:"height"`
	Fill        string         `json:"fill,omitempty"`
	Stroke      string         `json:"stroke,omitempty"`
	StrokeWidth float64        `json:"strokeWidth,omitempty"`
	Radius      float64        `json:"radius,omitempty"`
	Points      []Point        `json:"points,omitempty"`
	Lines       []TextLine     `json:"lines,omitempty"`
	Font        string         `json:"font,omitempty"`
	FontSize    float64        `json:"fontSize,omitempty"`
	Align       document.Align `json:"align,omitempty"`
	Image       image.Image    `json:"-"`
	ImageWidth  int            `json:"imageWidth,omitempty"`  // Image natural width
	ImageHeight int            `json:"imageHeight,omitempty"` // Image natural height
}

// Matrix returns the command's transform, or Identity when it has none.
func (c DrawCommand) Matrix() Matrix2D {
	if len(c.Transform) != 6 {
		return Identity()
	}
	return Matrix2D(c.Transform)
}

// HasFill reports whether the fill colour paints anything.
func HasFill(fill string) bool {
	return fill != "" && fill != "transparent" && fill != "none"
}

// CompileDrawCommands generates a draw command buffer for one page.
// Commands are in painter's order (back to front).
func CompileDrawCommands(p *document.Page, selected int, zoom float64, m Measurer) []DrawCommand {
	if p == nil {
		return nil
	}
	if m == nil {
		m = DefaultMeasurer
	}

	commands := make([]DrawCommand, 0, len(p.Objects)+2)
	commands = append(commands, DrawCommand{
		Op:     OpClear,
		Zoom:   zoom,
		Width:  p.Width,
		Height: p.Height,
		Fill:   Background,
	})

	for _, o := range p.Objects {
		commands = append(commands, compileObject(o, m))
		if b := o.Common(); selected != 0 && b.ID == selected {
			commands = append(commands, DrawCommand{
				Op:          OpSelection,
				ObjectID:    b.ID,
				Transform:   LocalFrame(b.Geometry).ToSlice(),
				Width:       b.W,
				Height:      b.H,
				Fill:        SelectionColor,
				Stroke:      SelectionColor,
				StrokeWidth: SelectionWidth,
				Radius:      HandleRadius,
				Points:      []Point{{0, 0}, {b.W, 0}, {0, b.H}, {b.W, b.H}},
			})
		}
	}
	return commands
}

func compileObject(o document.Object, m Measurer) DrawCommand {
	b := o.Common()
	cmd := DrawCommand{
		ObjectID:  b.ID,
		Transform: LocalFrame(b.Geometry).ToSlice(),
		Width:     b.W,
		Height:    b.H,
		Fill:      b.Fill,
	}
	if b.StrokeWidth > 0 {
		cmd.Stroke = b.Stroke
		cmd.StrokeWidth = b.StrokeWidth
	}

	switch v := o.(type) {
	case *document.Rect:
		cmd.Op = OpRect
		cmd.Radius = math.Min(CornerRadius, math.Min(b.W/2, b.H/2))
	case *document.Ellipse:
		cmd.Op = OpEllipse
	case *document.Triangle:
		cmd.Op = OpPolygon
		cmd.Points = []Point{{b.W / 2, 0}, {0, b.H}, {b.W, b.H}}
	case *document.Line:
		cmd.Op = OpLine
		cmd.Fill = ""
		cmd.Points = []Point{{0, b.H / 2}, {b.W, b.H / 2}}
	case *document.Text:
		cmd.Op = OpText
		cmd.Stroke, cmd.StrokeWidth = "", 0
		cmd.Font = v.Font
		cmd.FontSize = v.Size
		cmd.Align = v.Align
		cmd.Lines = WrapText(m, v.Content, v.Font, v.Size, b.W, alignAnchor(v.Align, b.W))
	case *document.Image:
		cmd.Op = OpImage
		cmd.Fill, cmd.Stroke, cmd.StrokeWidth = "", "", 0
		if v.Handle != nil {
			cmd.Image = v.Handle.Image()
			cmd.ImageWidth, cmd.ImageHeight = v.Handle.Size()
		}
	}
	return cmd
}

func alignAnchor(a document.Align, w float64) float64 {
	switch a {
	case document.AlignCenter:
		return w / 2
	case document.AlignRight:
		return w
	default:
		return 0
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
