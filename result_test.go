package hxnav

import (
	"errors"
	"net/http"
	"testing"
)

func TestResultBuilders(t *testing.T) {
	res := OK().
		Flash(FlashSuccess, "Story posted").
		Flash(FlashInfo, "Sent to followers").
		Header("Cache-Control", "no-store").
		Status(http.StatusCreated)

	if res.GetErr() != nil {
		t.Errorf("GetErr() = %v, want nil", res.GetErr())
	}
	if len(res.GetFlashes()) != 2 {
		t.Errorf("GetFlashes() = %+v, want 2", res.GetFlashes())
	}
	if res.GetHeaders()["Cache-Control"] != "no-store" {
		t.Errorf("GetHeaders() = %v", res.GetHeaders())
	}
	if res.GetStatus() != http.StatusCreated {
		t.Errorf("GetStatus() = %d", res.GetStatus())
	}
	if res.GetNavigate() != "" || res.ShouldReload() {
		t.Error("OK() should not navigate or reload")
	}
}

func TestResultIsValue(t *testing.T) {
	base := OK()
	_ = base.Flash(FlashError, "ignored")
	if len(base.GetFlashes()) != 0 {
		t.Error("builder methods must not mutate the receiver")
	}
}

func TestErrResult(t *testing.T) {
	cause := errors.New("Missing authentication")
	if res := Err(cause); !errors.Is(res.GetErr(), cause) {
		t.Errorf("Err().GetErr() = %v", res.GetErr())
	}
}

func TestNavigateResult(t *testing.T) {
	if got := Navigate("#/login").GetNavigate(); got != "#/login" {
		t.Errorf("Navigate().GetNavigate() = %q", got)
	}
	if got := OK().Navigate("#/").Reload(); got.GetNavigate() != "#/" || !got.ShouldReload() {
		t.Errorf("chained result = %+v", got)
	}
}

func TestWithEffects(t *testing.T) {
	res := withEffects(Navigate("#/a"), Effects{Navigate: "#/b", Reload: true})
	if res.GetNavigate() != "#/a" {
		t.Errorf("explicit navigation should win, got %q", res.GetNavigate())
	}
	if !res.ShouldReload() {
		t.Error("reload effect lost")
	}
	if got := withEffects(OK(), Effects{Navigate: "#/b"}).GetNavigate(); got != "#/b" {
		t.Errorf("effect navigation = %q, want #/b", got)
	}
}
