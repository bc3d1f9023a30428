package engine

import "github.com/kcwdesign/kcw/backend-go/internal/document"

// PickTopmost resolves a device-space point to the frontmost object under it. Objects are tested
// from the top of the stack down, so a later or raised object always wins an overlap.
func PickTopmost(p *document.Page, devX, devY, zoom float64) (document.Object, bool) {
	if p == nil || zoom <= 0 {
		return nil, false
	}
	x, y := devX/zoom, devY/zoom
	for i := len(p.Objects) - 1; i >= 0; i-- {
		o := p.Objects[i]
		if PointInLocalBox(x, y, o.Common().Geometry) {
			return o, true
		}
	}
	return nil, false
}
