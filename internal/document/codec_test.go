package document

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/go-cmp/cmp"
)

var cmpImages = cmp.Comparer(func(a, b *ImageHandle) bool { return a.Equal(b) })

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRoundTripAllKinds(t *testing.T) {
	h, err := DecodeImage(pngBytes(t, 8, 4))
	if err != nil {
		t.Fatal(err)
	}

	p := NewPage(DefaultPreset)
	for _, k := range []Kind{KindRect, KindEllipse, KindTriangle, KindLine, KindText} {
		p.Add(NewObject(k, p.NextID))
	}
	p.Add(NewImageObject(h, p.NextID))
	p.Objects[1].Common().Rot = 33

	blob, err := Marshal([]*Page{p})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Unmarshal(blob)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*Page{p}, got, cmpImages); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	img := got[0].Objects[5].(*Image)
	if w, hh := img.Handle.Size(); w != 8 || hh != 4 {
		t.Errorf("decoded size = %dx%d, want 8x4", w, hh)
	}
}

func TestUnmarshalRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", `{{{`},
		{"no pages", `{"pages":[]}`},
		{"zero size", `{"pages":[{"id":"p","width":0,"height":10,"objects":[],"nextId":1}]}`},
		{"unknown kind", `{"pages":[{"id":"p","width":10,"height":10,"objects":[{"type":"star","id":1}],"nextId":2}]}`},
		{"duplicate ids", `{"pages":[{"id":"p","width":10,"height":10,"objects":[{"type":"rect","id":1},{"type":"rect","id":1}],"nextId":2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.blob)); err == nil {
				t.Fatal("Unmarshal succeeded on malformed data")
			}
		})
	}
}

func TestUnmarshalRepairsCounter(t *testing.T) {
	blob := `{"pages":[{"id":"p","width":10,"height":10,"objects":[{"type":"rect","id":4}],"nextId":1}]}`
	pages, err := Unmarshal([]byte(blob))
	if err != nil {
		t.Fatal(err)
	}
	if pages[0].NextID != 5 {
		t.Fatalf("NextID = %d, want 5", pages[0].NextID)
	}
}

func TestUnmarshalEmptyDocument(t *testing.T) {
	_, err := Unmarshal([]byte(`{}`))
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}

func TestUndecodableImageBecomesPlaceholder(t *testing.T) {
	blob := `{"pages":[{"id":"p","width":10,"height":10,"objects":[{"type":"image","id":1,"w":5,"h":5,"img":"bm90IGFuIGltYWdl"}],"nextId":2}]}`
	pages, err := Unmarshal([]byte(blob))
	if err != nil {
		t.Fatal(err)
	}
	img := pages[0].Objects[0].(*Image)
	if img.Handle == nil || !img.Handle.IsPlaceholder() {
		t.Fatal("expected a placeholder handle")
	}
	if string(img.Handle.Source()) != "not an image" {
		t.Errorf("placeholder lost its source bytes: %q", img.Handle.Source())
	}
}
