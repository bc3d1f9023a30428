package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// placeholderColor fills images whose source bytes can no longer be decoded.
var placeholderColor = color.NRGBA{R: 0xcb, G: 0xd5, B: 0xe1, A: 0xff}

// ImageHandle owns one decoded image together with the encoded bytes it came from. Handles are
// never shared between objects: copies are produced with Redecode.
type ImageHandle struct {
	src         []byte
	img         image.Image
	placeholder bool
}

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes into a new handle.
func DecodeImage(src []byte) (*ImageHandle, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	buf := make([]byte, len(src))
	copy(buf, src)
	return &ImageHandle{src: buf, img: img}, nil
}

// Placeholder returns a flat grey handle of the given size that keeps src for later round trips.
func Placeholder(src []byte, w, h int) *ImageHandle {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return &ImageHandle{
		src:         src,
		img:         imaging.New(w, h, placeholderColor),
		placeholder: true,
	}
}

// Redecode decodes the source bytes again, producing a handle that shares nothing with h.
func (h *ImageHandle) Redecode() (*ImageHandle, error) {
	if h.placeholder {
		b := h.img.Bounds()
		return Placeholder(append([]byte(nil), h.src...), b.Dx(), b.Dy()), nil
	}
	return DecodeImage(h.src)
}

// Image returns the decoded pixels.
func (h *ImageHandle) Image() image.Image { return h.img }

// Source returns the encoded bytes the handle was decoded from.
func (h *ImageHandle) Source() []byte { return h.src }

// IsPlaceholder reports whether the original pixels were lost.
func (h *ImageHandle) IsPlaceholder() bool { return h.placeholder }

// Size returns the natural pixel size.
func (h *ImageHandle) Size() (int, int) {
	b := h.img.Bounds()
	return b.Dx(), b.Dy()
}

// Equal reports whether both handles were decoded from the same bytes.
func (h *ImageHandle) Equal(o *ImageHandle) bool {
	if h == nil || o == nil {
		return h == o
	}
	return bytes.Equal(h.src, o.src) && h.placeholder == o.placeholder
}

// MarshalJSON stores the encoded source; decoded pixels are never serialized.
func (h *ImageHandle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.src)
}

// UnmarshalJSON decodes the stored source. Bytes that fail to decode yield a placeholder
// instead of an error so one bad image cannot sink a whole document.
func (h *ImageHandle) UnmarshalJSON(data []byte) error {
	var src []byte
	if err := json.Unmarshal(data, &src); err != nil {
		return err
	}
	decoded, err := DecodeImage(src)
	if err != nil {
		*h = *Placeholder(src, 1, 1)
		return nil
	}
	*h = *decoded
	return nil
}
