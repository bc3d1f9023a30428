//go:build js && wasm

package main

import (
	"context"
	"syscall/js"
)

// localStorage keeps saved designs in the browser. Blobs are JSON, so they fit in a string.
type localStorage struct{}

func (localStorage) Put(_ context.Context, key string, blob []byte) (err error) {
	defer func() {
		// setItem throws when the quota is exceeded.
		if r := recover(); r != nil {
			err = js.Error{Value: js.ValueOf("localStorage.setItem failed")}
		}
	}()
	js.Global().Get("localStorage").Call("setItem", key, string(blob))
	return nil
}

func (localStorage) Get(_ context.Context, key string) ([]byte, bool, error) {
	v := js.Global().Get("localStorage").Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return nil, false, nil
	}
	return []byte(v.String()), true, nil
}

// jsMeasurer asks the page how wide a run of text is.
type jsMeasurer struct {
	fn js.Value
}

func (m jsMeasurer) Measure(s, font string, size float64) float64 {
	return m.fn.Invoke(s, font, size).Float()
}
