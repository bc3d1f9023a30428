//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"syscall/js"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
	"github.com/kcwdesign/kcw/backend-go/internal/engine"
)

var (
	// mu serializes engine access between JS callbacks and background image decodes.
	mu  sync.Mutex
	eng *engine.Engine
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})))

	eng = engine.NewEngine(engine.Options{
		Store: localStorage{},
	})

	// Create the engine API object
	kcwEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	kcwEngine.Set("pointerDown", js.FuncOf(pointerDown))
	kcwEngine.Set("pointerMove", js.FuncOf(pointerMove))
	kcwEngine.Set("pointerUp", js.FuncOf(pointerUp))
	kcwEngine.Set("keyDown", js.FuncOf(keyDown))
	kcwEngine.Set("addObject", js.FuncOf(addObject))
	kcwEngine.Set("addImage", js.FuncOf(addImage))
	kcwEngine.Set("select", js.FuncOf(selectObject))
	kcwEngine.Set("applyEdit", js.FuncOf(applyEdit))
	kcwEngine.Set("deleteSelected", action(func(e *engine.Engine) error { return e.DeleteSelected() }))
	kcwEngine.Set("bringForward", action(func(e *engine.Engine) error { return e.BringForward() }))
	kcwEngine.Set("sendBack", action(func(e *engine.Engine) error { return e.SendBack() }))
	kcwEngine.Set("undo", action(func(e *engine.Engine) error { _, err := e.Undo(); return err }))
	kcwEngine.Set("redo", action(func(e *engine.Engine) error { _, err := e.Redo(); return err }))
	kcwEngine.Set("addPage", action(func(e *engine.Engine) error { return e.AddPage() }))
	kcwEngine.Set("duplicatePage", action(func(e *engine.Engine) error { return e.DuplicatePage() }))
	kcwEngine.Set("deletePage", action(func(e *engine.Engine) error { return e.DeletePage() }))
	kcwEngine.Set("newDocument", action(func(e *engine.Engine) error { return e.NewDocument() }))
	kcwEngine.Set("save", action(func(e *engine.Engine) error { return e.Save(context.Background()) }))
	kcwEngine.Set("load", action(func(e *engine.Engine) error { return e.Load(context.Background()) }))
	kcwEngine.Set("selectPage", js.FuncOf(selectPage))
	kcwEngine.Set("setPreset", js.FuncOf(setPreset))
	kcwEngine.Set("applyTemplate", js.FuncOf(applyTemplate))
	kcwEngine.Set("setZoom", js.FuncOf(setZoom))
	kcwEngine.Set("setRenderCallback", js.FuncOf(setRenderCallback))
	kcwEngine.Set("setMeasurer", js.FuncOf(setMeasurer))

	// --- Queries (frontend ← engine) ---
	kcwEngine.Set("render", js.FuncOf(render))
	kcwEngine.Set("hitTest", js.FuncOf(hitTest))
	kcwEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	kcwEngine.Set("getSelection", js.FuncOf(getSelection))
	kcwEngine.Set("getStatus", js.FuncOf(getStatus))
	kcwEngine.Set("getPages", js.FuncOf(getPages))
	kcwEngine.Set("getDocument", js.FuncOf(getDocument))
	kcwEngine.Set("getExportName", js.FuncOf(getExportName))
	kcwEngine.Set("getDragMode", js.FuncOf(getDragMode))

	// Register on global scope
	js.Global().Set("kcwEngine", kcwEngine)

	// Signal that WASM is ready
	js.Global().Set("kcwWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func result(err error) interface{} {
	if err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error(), "status": eng.Status()})
	}
	return js.ValueOf(map[string]interface{}{"ok": true, "status": eng.Status()})
}

func action(fn func(*engine.Engine) error) js.Func {
	return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		mu.Lock()
		defer mu.Unlock()
		return result(fn(eng))
	})
}

// modifiers reads {shift, alt, ctrl, meta} from a JS event-like object.
func modifiers(v js.Value) engine.Modifiers {
	var m engine.Modifiers
	if v.Type() != js.TypeObject {
		return m
	}
	if v.Get("shiftKey").Truthy() || v.Get("shift").Truthy() {
		m |= engine.ModShift
	}
	if v.Get("altKey").Truthy() || v.Get("alt").Truthy() {
		m |= engine.ModAlt
	}
	if v.Get("ctrlKey").Truthy() || v.Get("ctrl").Truthy() {
		m |= engine.ModCtrl
	}
	if v.Get("metaKey").Truthy() || v.Get("meta").Truthy() {
		m |= engine.ModMeta
	}
	return m
}

// --- Command Handlers ---

func pointerDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	var mods engine.Modifiers
	if len(args) > 2 {
		mods = modifiers(args[2])
	}
	mu.Lock()
	defer mu.Unlock()
	return result(eng.PointerDown(args[0].Float(), args[1].Float(), mods))
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.PointerMove(args[0].Float(), args[1].Float()))
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	eng.PointerUp()
	return nil
}

// keyDown returns true when the key was an editor shortcut and the page should not see it.
func keyDown(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(false)
	}
	var mods engine.Modifiers
	if len(args) > 1 {
		mods = modifiers(args[1])
	}
	mu.Lock()
	defer mu.Unlock()
	handled, err := eng.KeyDown(args[0].String(), mods)
	if err != nil {
		slog.Warn("key handler failed", "key", args[0].String(), "error", err)
	}
	return js.ValueOf(handled)
}

func addObject(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing kind"})
	}
	mu.Lock()
	defer mu.Unlock()
	_, err := eng.AddObject(document.Kind(args[0].String()))
	return result(err)
}

// addImage takes a Uint8Array of encoded image bytes. Decoding runs in the background and the
// object lands on whatever page is current when it finishes.
func addImage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeObject {
		return js.ValueOf(map[string]interface{}{"error": "missing image bytes"})
	}
	data := make([]byte, args[0].Get("length").Int())
	js.CopyBytesToGo(data, args[0])

	go func() {
		h, err := document.DecodeImage(data)
		if err != nil {
			slog.Warn("image decode failed", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := eng.AddImage(h); err != nil {
			slog.Warn("image insert failed", "error", err)
		}
	}()
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func selectObject(this js.Value, args []js.Value) interface{} {
	id := 0
	if len(args) > 0 && args[0].Type() == js.TypeNumber {
		id = args[0].Int()
	}
	mu.Lock()
	defer mu.Unlock()
	eng.Select(id)
	return nil
}

func applyEdit(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return js.ValueOf(map[string]interface{}{"error": "missing edit JSON"})
	}
	var ed engine.Edit
	if err := json.Unmarshal([]byte(args[0].String()), &ed); err != nil {
		return js.ValueOf(map[string]interface{}{"error": err.Error()})
	}
	mu.Lock()
	defer mu.Unlock()
	return result(eng.ApplyEdit(ed))
}

func selectPage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	return result(eng.SelectPage(args[0].Int()))
}

func setPreset(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	return result(eng.SetPreset(args[0].String()))
}

func applyTemplate(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	return result(eng.ApplyTemplate(args[0].String()))
}

func setZoom(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.SetZoom(args[0].Float()))
}

// setRenderCallback registers fn(commandsJSON) to be called after every redraw.
func setRenderCallback(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		eng.SetRenderSink(nil)
		return nil
	}
	fn := args[0]
	eng.SetRenderSink(func(cmds []engine.DrawCommand) {
		out, err := engine.DrawCommandsToJSON(cmds)
		if err != nil {
			slog.Error("marshal draw commands", "error", err)
			return
		}
		fn.Invoke(out)
	})
	return nil
}

// setMeasurer installs fn(text, font, size) -> width, usually backed by canvas measureText.
func setMeasurer(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 || args[0].Type() != js.TypeFunction {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	eng.SetMeasurer(jsMeasurer{fn: args[0]})
	eng.Render()
	return nil
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	out, err := engine.DrawCommandsToJSON(eng.Render())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(out)
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(0)
	}
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float()))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	b := eng.SelectionBounds()
	return js.ValueOf(map[string]interface{}{"x": b.X, "y": b.Y, "width": b.Width, "height": b.Height})
}

func getSelection(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	o, ok := eng.Selected()
	if !ok {
		return js.Null()
	}
	data, err := document.MarshalObject(o)
	if err != nil {
		return js.Null()
	}
	return js.ValueOf(string(data))
}

func getStatus(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.Status())
}

func getPages(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	data, err := json.Marshal(eng.PageSummaries())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(string(data))
}

func getDocument(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	data, err := eng.Snapshot()
	if err != nil {
		return js.Null()
	}
	return js.ValueOf(string(data))
}

func getExportName(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.ExportName())
}

func getDragMode(this js.Value, args []js.Value) interface{} {
	mu.Lock()
	defer mu.Unlock()
	return js.ValueOf(eng.DragMode().String())
}
