package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeDefaults(t *testing.T) {
	r := GenerationRequest{Prompt: "  a warrior  "}
	r.Normalize()

	if r.Prompt != "a warrior" {
		t.Fatalf("Prompt = %q, want trimmed", r.Prompt)
	}
	if r.DurationSeconds != 5 {
		t.Fatalf("DurationSeconds = %d, want 5", r.DurationSeconds)
	}
	if r.AspectRatio != "16:9" {
		t.Fatalf("AspectRatio = %q, want 16:9", r.AspectRatio)
	}
	if r.Quality != "standard" {
		t.Fatalf("Quality = %q, want standard", r.Quality)
	}
}

func TestValidateRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name string
		req  GenerationRequest
	}{
		{"empty prompt", GenerationRequest{DurationSeconds: 5, AspectRatio: "16:9"}},
		{"prompt too long", GenerationRequest{Prompt: strings.Repeat("x", MaxPromptLength+1), DurationSeconds: 5, AspectRatio: "16:9"}},
		{"duration too short", GenerationRequest{Prompt: "p", DurationSeconds: 1, AspectRatio: "16:9"}},
		{"duration too long", GenerationRequest{Prompt: "p", DurationSeconds: 60, AspectRatio: "16:9"}},
		{"bad aspect ratio", GenerationRequest{Prompt: "p", DurationSeconds: 5, AspectRatio: "2:1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("error %v does not wrap ErrInvalidRequest", err)
			}
		})
	}
}

func TestCreditCost(t *testing.T) {
	standard := GenerationRequest{Prompt: "p", DurationSeconds: 5, AspectRatio: "16:9", Quality: "standard"}
	if got := CreditCost(standard); got != 50 {
		t.Fatalf("CreditCost(standard 5s) = %d, want 50", got)
	}
	hd := standard
	hd.Quality = "HD"
	if got := CreditCost(hd); got != 70 {
		t.Fatalf("CreditCost(hd 5s) = %d, want 70", got)
	}
}

func TestCloneDoesNotAliasArtifacts(t *testing.T) {
	job := &GenerationJob{ID: "j", Artifacts: map[string]string{"first_frame": "u"}}
	cp := job.Clone()
	cp.Artifacts["video"] = "v"
	if _, ok := job.Artifacts["video"]; ok {
		t.Fatal("Clone shares the artifacts map with the original")
	}
}
