package core

import "testing"

func TestStatus_CanTransitionTo(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusCreated, StatusProcessing},
		{StatusCreated, StatusError},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusError},
		{StatusProcessing, StatusCancelled},
		{StatusProcessing, StatusPaused},
		{StatusPaused, StatusProcessing},
		{StatusError, StatusError}, // re-assertion is a no-op
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusCreated, StatusCompleted},
		{StatusCreated, StatusPaused},
		{StatusCompleted, StatusProcessing},
		{StatusError, StatusProcessing},
		{StatusCancelled, StatusProcessing},
		{StatusPaused, StatusCompleted},
		{StatusPaused, StatusError},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusError, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusCreated, StatusProcessing, StatusPaused} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestSession_Clone(t *testing.T) {
	s := NewSession("s1")
	s.Data["k"] = "v"
	s.State["step"] = 1
	s.History = append(s.History, HistoryEntry{Action: "created"})

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should return a different pointer")
	}

	clone.Data["k"] = "changed"
	clone.State["step"] = 2
	clone.History[0].Action = "changed"

	if s.Data["k"] != "v" || s.State["step"] != 1 || s.History[0].Action != "created" {
		t.Errorf("clone mutation leaked into original: %+v", s)
	}
}

func TestSuccessAndErrorText(t *testing.T) {
	if Success(map[string]any{"success": false}) || Success(map[string]any{}) {
		t.Error("Success should be false for missing/false flag")
	}
	if !Success(map[string]any{"success": true}) {
		t.Error("Success should be true")
	}
	if got := ErrorText(map[string]any{"error": "boom"}, "fallback"); got != "boom" {
		t.Errorf("unexpected error text %q", got)
	}
	if got := ErrorText(map[string]any{}, "fallback"); got != "fallback" {
		t.Errorf("unexpected fallback %q", got)
	}
}
