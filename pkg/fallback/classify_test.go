package fallback

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/zen-systems/ecoscan/pkg/adapter"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		d    Descriptor
		want Class
	}{
		{"status 429", Descriptor{Status: 429}, Quota},
		{"resource exhausted code", Descriptor{Code: "RESOURCE_EXHAUSTED"}, Quota},
		{"429 in message", Descriptor{Message: "got 429 from upstream"}, Quota},
		{"exhausted in message", Descriptor{Message: "RESOURCE_EXHAUSTED: try later"}, Quota},
		{"status 404", Descriptor{Status: 404}, NotFound},
		{"entity not found", Descriptor{Message: "Requested entity was not found."}, NotFound},
		{"model_not_found code", Descriptor{Code: "model_not_found"}, NotFound},
		{"status 401", Descriptor{Status: 401}, Auth},
		{"status 403", Descriptor{Status: 403}, Auth},
		{"invalid key text", Descriptor{Message: "API key not valid. Please pass a valid API key."}, Auth},
		{"timeout", Descriptor{Timeout: true, Status: 500}, Timeout},
		{"bad request", Descriptor{Status: 400, Message: "invalid argument"}, Other},
		{"safety block", Descriptor{Message: "response blocked by safety filters"}, Other},
		{"empty", Descriptor{}, Other},
		{"status beats message", Descriptor{Status: 429, Message: "Requested entity was not found"}, Quota},
	}

	for _, tc := range cases {
		if got := Classify(tc.d); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestDescribeAdapterError(t *testing.T) {
	base := &adapter.Error{Provider: "google", Status: 429, Code: "RESOURCE_EXHAUSTED", Message: "quota"}
	err := fmt.Errorf("call failed: %w", base)

	d := Describe(err)
	if d.Status != 429 || d.Code != "RESOURCE_EXHAUSTED" {
		t.Fatalf("unexpected descriptor %+v", d)
	}
	if ClassifyError(err) != Quota {
		t.Fatalf("expected quota")
	}
}

func TestDescribeDeadline(t *testing.T) {
	err := fmt.Errorf("request: %w", context.DeadlineExceeded)
	if !Describe(err).Timeout {
		t.Fatalf("expected timeout flag")
	}
	if ClassifyError(errors.New("boom")) != Other {
		t.Fatalf("expected other for plain error")
	}
}

func TestClassTransient(t *testing.T) {
	for _, c := range []Class{Quota, NotFound, Timeout} {
		if !c.Transient() {
			t.Fatalf("%s should be transient", c)
		}
	}
	for _, c := range []Class{Auth, Other} {
		if c.Transient() {
			t.Fatalf("%s should not be transient", c)
		}
	}
}
