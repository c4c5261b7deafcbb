package server

import (
	"encoding/json"
	"testing"

	"github.com/nekro-live/animctl/pkg/actionscheduler"
)

func mustAction(t *testing.T, typ actionscheduler.Type, data any) actionscheduler.Action {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	return actionscheduler.Action{Type: typ, Data: raw}
}

func TestValidateAction_SayRequiresText(t *testing.T) {
	a := mustAction(t, actionscheduler.TypeSay, actionscheduler.SayData{Text: ""})
	if err := validateAction(a); err == nil {
		t.Fatal("expected validation error for empty text")
	}
	a = mustAction(t, actionscheduler.TypeSay, actionscheduler.SayData{Text: "hi"})
	if err := validateAction(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAction_AnimationRequiresParameter(t *testing.T) {
	a := mustAction(t, actionscheduler.TypeAnimation, actionscheduler.AnimationData{Parameter: "", Target: 1})
	if err := validateAction(a); err == nil {
		t.Fatal("expected validation error for empty parameter")
	}
}

func TestValidateAction_ExpressionRequiresName(t *testing.T) {
	a := mustAction(t, actionscheduler.TypeExpression, actionscheduler.ExpressionData{Name: ""})
	if err := validateAction(a); err == nil {
		t.Fatal("expected validation error for empty name")
	}
}

func TestValidateAction_SoundPlayRejectsOutOfRangeFields(t *testing.T) {
	cases := []actionscheduler.SoundPlayData{
		{Path: "", Speed: 1, Volume: 0.5},
		{Path: "a.wav", Speed: 0, Volume: 0.5},
		{Path: "a.wav", Speed: 1, Volume: 1.5},
		{Path: "a.wav", Speed: 1, Volume: 0.5, Delay: -1},
	}
	for i, c := range cases {
		a := mustAction(t, actionscheduler.TypeSoundPlay, c)
		if err := validateAction(a); err == nil {
			t.Fatalf("case %d: expected validation error, got none", i)
		}
	}

	valid := mustAction(t, actionscheduler.TypeSoundPlay, actionscheduler.SoundPlayData{Path: "a.wav", Speed: 1, Volume: 0.5})
	if err := validateAction(valid); err != nil {
		t.Fatalf("unexpected error on valid sound_play: %v", err)
	}
}

func TestReplyHelpers(t *testing.T) {
	r := ok("done", map[string]int{"n": 1})
	if r.Status != "success" || r.Message != "done" {
		t.Fatalf("got %+v", r)
	}

	r = bad(&testError{"boom"})
	if r.Status != "error" || r.Message != "boom" {
		t.Fatalf("got %+v", r)
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
