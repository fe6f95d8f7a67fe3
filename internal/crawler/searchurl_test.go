package crawler

import "testing"

func TestBuildSearchURL(t *testing.T) {
	cases := []struct {
		query    string
		location string
		want     string
	}{
		{"plumber", "austin tx", "https://www.google.com/maps/search/plumber+austin+tx"},
		{"coffee shop", "", "https://www.google.com/maps/search/coffee+shop"},
		{"  pizza  ", "  new york  ", "https://www.google.com/maps/search/pizza+new+york"},
		{"café & bar", "münchen", "https://www.google.com/maps/search/caf%C3%A9+%26+bar+m%C3%BCnchen"},
	}

	for _, tc := range cases {
		if got := BuildSearchURL(tc.query, tc.location); got != tc.want {
			t.Fatalf("BuildSearchURL(%q, %q) = %q, want %q", tc.query, tc.location, got, tc.want)
		}
	}
}

func TestRequestValidate(t *testing.T) {
	req := Request{Query: "  plumber  ", Location: " austin "}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Query != "plumber" || req.Location != "austin" {
		t.Fatalf("expected trimmed fields, got %+v", req)
	}
	if req.MaxResults != defaultMaxResults {
		t.Fatalf("expected default max results, got %d", req.MaxResults)
	}

	if err := (&Request{}).Validate(); err == nil {
		t.Fatalf("expected error for empty query")
	}
	if err := (&Request{Query: "x", MaxResults: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative max results")
	}
	if err := (&Request{Query: "x", MaxResults: 201}).Validate(); err == nil {
		t.Fatalf("expected error above ceiling")
	}
	if err := (&Request{Query: "x", MaxResults: 200}).Validate(); err != nil {
		t.Fatalf("expected 200 to be accepted, got %v", err)
	}
}
