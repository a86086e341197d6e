package adapter

import "testing"

func TestDescribeMarksRoutedModels(t *testing.T) {
	mock := NewNamedMockAdapter("google").
		Respond("gemini-a", "a").
		Respond("gemini-b", "b")

	info := Describe(mock, "gemini-b", "gemini-preview", "gemini-b")
	if info.Name != "google" {
		t.Fatalf("unexpected name %q", info.Name)
	}

	want := []ModelInfo{
		{ID: "gemini-a"},
		{ID: "gemini-b", Routed: true},
		{ID: "gemini-preview", Routed: true},
	}
	if len(info.Models) != len(want) {
		t.Fatalf("expected %d models, got %+v", len(want), info.Models)
	}
	for i, m := range want {
		if info.Models[i] != m {
			t.Fatalf("model %d: got %+v want %+v", i, info.Models[i], m)
		}
	}
}
