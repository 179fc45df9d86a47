package hxnav

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRenderFlashesOOBEmpty(t *testing.T) {
	if result := RenderFlashesOOB(nil); result != "" {
		t.Errorf("RenderFlashesOOB(nil) = %q, want empty string", result)
	}
	if result := RenderFlashesOOB([]Flash{}); result != "" {
		t.Errorf("RenderFlashesOOB([]) = %q, want empty string", result)
	}
}

func TestRenderFlashesOOB(t *testing.T) {
	flashes := []Flash{
		{Level: FlashSuccess, Message: "Story posted"},
		{Level: FlashError, Message: "Upload failed"},
	}

	result := RenderFlashesOOB(flashes)

	if strings.Count(result, `id="toasts"`) != 1 {
		t.Error("Should have exactly one toasts container")
	}
	if !strings.Contains(result, `hx-swap-oob="beforeend"`) {
		t.Error(`Missing hx-swap-oob="beforeend"`)
	}
	if strings.Count(result, `class="toast `) != 2 {
		t.Error("Should have two toast elements")
	}
	if !strings.Contains(result, `data-auto-dismiss="3000"`) {
		t.Error("Missing data-auto-dismiss")
	}

	parsed := parseFlashesFromHTML(result)
	if len(parsed) != 2 || parsed[0] != flashes[0] || parsed[1] != flashes[1] {
		t.Errorf("parseFlashesFromHTML = %+v, want %+v", parsed, flashes)
	}
}

func TestRenderFlashesOOBHTMLEscaping(t *testing.T) {
	result := RenderFlashesOOB([]Flash{{Level: "<bad>", Message: "<script>alert('xss')</script>"}})

	if strings.Contains(result, "<script>") {
		t.Error("HTML should be escaped - found raw <script> tag")
	}
	if strings.Contains(result, `toast-<bad>`) {
		t.Error("Level should be escaped")
	}
}

func TestOverlayIndicators(t *testing.T) {
	o := NewOverlay()

	o.Show("camera-permission", FlashInfo, "Allow camera access to take a photo")
	o.Show("offline", FlashWarning, "You are offline")
	if !o.Has("camera-permission") {
		t.Fatal("Has(camera-permission) = false after Show")
	}

	items := o.Items()
	if len(items) != 2 || items[0].ID != "camera-permission" || items[1].ID != "offline" {
		t.Errorf("Items() = %+v, want sorted camera-permission, offline", items)
	}

	_, got, changed := o.take()
	if !changed || len(got) != 2 {
		t.Errorf("take() = %v, %v, want 2 indicators changed", got, changed)
	}
	if _, _, changed := o.take(); changed {
		t.Error("second take() should report no change")
	}

	o.Remove("camera-permission")
	o.Remove("camera-permission")
	if o.Has("camera-permission") {
		t.Error("indicator still attached after Remove")
	}
	_, got, changed = o.take()
	if !changed || len(got) != 1 {
		t.Errorf("take() after Remove = %v, %v, want 1 indicator changed", got, changed)
	}
}

func TestOverlayFlashesDrain(t *testing.T) {
	o := NewOverlay()
	o.Flash(FlashSuccess, "Logged in")

	flashes, _, _ := o.take()
	if len(flashes) != 1 || flashes[0].Message != "Logged in" {
		t.Errorf("take() flashes = %+v", flashes)
	}
	if flashes, _, _ := o.take(); len(flashes) != 0 {
		t.Errorf("flashes should drain, got %+v", flashes)
	}
}

func TestRenderIndicatorsOOBClears(t *testing.T) {
	result := RenderIndicatorsOOB(nil)
	want := `<div id="indicators" hx-swap-oob="innerHTML"></div>`
	if result != want {
		t.Errorf("RenderIndicatorsOOB(nil) = %q, want %q", result, want)
	}
}

func TestOverlayContainer(t *testing.T) {
	o := NewOverlay()
	o.Show("camera-permission", FlashInfo, "Allow camera access")

	var buf bytes.Buffer
	if err := OverlayContainer(o).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := buf.String()
	for _, want := range []string{`id="indicators"`, `id="toasts"`, `data-indicator="camera-permission"`} {
		if !strings.Contains(html, want) {
			t.Errorf("OverlayContainer missing %q: %s", want, html)
		}
	}
}
