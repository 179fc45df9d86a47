package hxnav

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/a-h/templ"
)

func TestTestRender(t *testing.T) {
	p := NewMockPage("about", nil)

	result, err := TestRender(p, TestVisit("/about", nil))
	if err != nil {
		t.Fatalf("TestRender() error = %v", err)
	}
	if !result.HTMLContains("<p>about</p>") || !result.IsOK() {
		t.Errorf("TestRender() = %+v", result)
	}
	if !result.HTMLContainsAll("<p>", "about") || result.HTMLContainsAny("detail", "login") {
		t.Error("HTMLContainsAll/Any mismatch")
	}
}

func TestTestRenderError(t *testing.T) {
	p := NewMockPage("broken", nil)
	p.RenderFunc = func(ctx context.Context, v Visit) (templ.Component, error) {
		return nil, errors.New("no template")
	}
	if _, err := TestRender(p, TestVisit("/", nil)); err == nil {
		t.Error("TestRender() should surface render errors")
	}
}

func TestMockPageLog(t *testing.T) {
	log := &CallLog{}
	p := NewMockPage("map", log)

	v := TestVisit("/detail/:id", Params{"id": "42"})
	_, _ = p.Render(context.Background(), v)
	_ = p.AfterRender(context.Background(), nil)
	_ = p.BeforeDestroy(context.Background())

	want := []string{"map.render", "map.afterRender", "map.beforeDestroy"}
	if got := log.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("Calls() = %v, want %v", got, want)
	}
	if last, ok := p.LastVisit(); !ok || last.Param("id") != "42" {
		t.Errorf("LastVisit() = %+v, %v", last, ok)
	}

	log.Reset()
	if len(log.Calls()) != 0 {
		t.Error("Reset() should clear the log")
	}
}
