package urlutil

import (
	"net/url"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trailing slash removed",
			input:    "https://docs.example.com/guide/",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "no trailing slash stays same",
			input:    "https://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "fragment removed",
			input:    "https://docs.example.com/guide#index",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "query parameters removed",
			input:    "https://docs.example.com/guide?utm_source=twitter",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "both fragment and query removed",
			input:    "https://docs.example.com/guide?utm_source=twitter#index",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "scheme lowercased",
			input:    "HTTPS://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "host lowercased",
			input:    "https://DOCS.EXAMPLE.COM/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "scheme and host lowercased",
			input:    "HTTPS://DOCS.EXAMPLE.COM/GUIDE",
			expected: "https://docs.example.com/GUIDE",
		},
		{
			name:     "default http port removed",
			input:    "http://docs.example.com:80/guide",
			expected: "http://docs.example.com/guide",
		},
		{
			name:     "default https port removed",
			input:    "https://docs.example.com:443/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "non-default port preserved",
			input:    "https://docs.example.com:8080/guide",
			expected: "https://docs.example.com:8080/guide",
		},
		{
			name:     "multiple trailing slashes removed",
			input:    "https://docs.example.com/guide///",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "root path preserved",
			input:    "https://docs.example.com/",
			expected: "https://docs.example.com/",
		},
		{
			name:     "root path without slash",
			input:    "https://docs.example.com",
			expected: "https://docs.example.com",
		},
		{
			name:     "complex path with fragment and query",
			input:    "https://docs.example.com/api/v1/users?id=123#section",
			expected: "https://docs.example.com/api/v1/users",
		},
		{
			name:     "path with uppercase preserved",
			input:    "https://docs.example.com/API/v1/Users",
			expected: "https://docs.example.com/API/v1/Users",
		},
		{
			name:     "http with non-standard port",
			input:    "http://docs.example.com:8080/path",
			expected: "http://docs.example.com:8080/path",
		},
		{
			name:     "empty query removed",
			input:    "https://docs.example.com/guide?",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "empty fragment removed",
			input:    "https://docs.example.com/guide#",
			expected: "https://docs.example.com/guide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputURL, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("failed to parse input URL %q: %v", tt.input, err)
			}

			result := Canonicalize(*inputURL)
			resultStr := result.String()

			if resultStr != tt.expected {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, resultStr, tt.expected)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	// Test that Canonicalize is idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
	testURLs := []string{
		"https://docs.example.com/guide/",
		"https://docs.example.com/guide?utm_source=twitter",
		"https://docs.example.com/guide#index",
		"HTTPS://DOCS.EXAMPLE.COM:443/GUIDE/?#",
		"http://example.com:80/path///",
	}

	for _, urlStr := range testURLs {
		t.Run(urlStr, func(t *testing.T) {
			inputURL, err := url.Parse(urlStr)
			if err != nil {
				t.Fatalf("failed to parse URL %q: %v", urlStr, err)
			}

			first := Canonicalize(*inputURL)
			second := Canonicalize(first)

			firstStr := first.String()
			secondStr := second.String()

			if firstStr != secondStr {
				t.Errorf("Canonicalize is not idempotent: first=%q, second=%q", firstStr, secondStr)
			}
		})
	}
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	// Ensure the original URL is not modified
	input, _ := url.Parse("https://example.com/path/?query=1#frag")
	original := *input

	_ = Canonicalize(*input)

	if input.String() != original.String() {
		t.Error("Canonicalize mutated the input URL")
	}
}

func TestLowerASCII(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello", "hello"},
		{"HELLO", "hello"},
		{"hello", "hello"},
		{"HTTPS", "https"},
		{"MixedCASE", "mixedcase"},
		{"already-lower", "already-lower"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := lowerASCII(tt.input)
			if result != tt.expected {
				t.Errorf("lowerASCII(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		href     string
		base     string
		opts     NormalizeOptions
		expected string
		wantOk   bool
	}{
		{
			name:     "relative path resolved against base",
			href:     "/guide",
			base:     "https://docs.example.com/old",
			expected: "https://docs.example.com/guide",
			wantOk:   true,
		},
		{
			name:     "protocol-relative uses base scheme",
			href:     "//cdn.example.com/asset.js",
			base:     "https://docs.example.com/",
			expected: "https://cdn.example.com/asset.js",
			wantOk:   true,
		},
		{
			name:     "tracking params removed and keys sorted",
			href:     "https://docs.example.com/guide?z=1&utm_source=x&a=2",
			base:     "https://docs.example.com/",
			expected: "https://docs.example.com/guide?a=2&z=1",
			wantOk:   true,
		},
		{
			name:     "blank query value preserved",
			href:     "https://docs.example.com/guide?flag=",
			base:     "https://docs.example.com/",
			expected: "https://docs.example.com/guide?flag=",
			wantOk:   true,
		},
		{
			name:     "fragment dropped by default",
			href:     "https://docs.example.com/guide#section",
			base:     "https://docs.example.com/",
			expected: "https://docs.example.com/guide",
			wantOk:   true,
		},
		{
			name:     "fragment kept when requested",
			href:     "https://docs.example.com/guide#section",
			base:     "https://docs.example.com/",
			opts:     NormalizeOptions{KeepFragment: true},
			expected: "https://docs.example.com/guide#section",
			wantOk:   true,
		},
		{
			name:     "extra tracking param removed",
			href:     "https://docs.example.com/guide?campaign_id=7",
			base:     "https://docs.example.com/",
			opts:     NormalizeOptions{ExtraTrackingParams: []string{"campaign_id"}},
			expected: "https://docs.example.com/guide",
			wantOk:   true,
		},
		{
			name:   "empty input returns not-ok",
			href:   "   ",
			base:   "https://docs.example.com/",
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := Normalize(tt.href, tt.base, tt.opts)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if ok != tt.wantOk {
				t.Fatalf("Normalize ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && got != tt.expected {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.href, tt.base, got, tt.expected)
			}
		})
	}
}

func TestNormalizeInvalidBase(t *testing.T) {
	_, _, err := Normalize("/guide", "/relative-base-has-no-scheme", NormalizeOptions{})
	if err != ErrInvalidBase {
		t.Fatalf("expected ErrInvalidBase, got %v", err)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	base := "https://docs.example.com/"
	inputs := []string{
		"https://docs.example.com/guide/?utm_source=x&b=1&a=2#frag",
		"//docs.example.com/path///",
		"HTTPS://DOCS.EXAMPLE.COM:443/Guide",
	}

	for _, href := range inputs {
		t.Run(href, func(t *testing.T) {
			first, ok, err := Normalize(href, base, NormalizeOptions{})
			if err != nil || !ok {
				t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
			}
			second, ok, err := Normalize(first, base, NormalizeOptions{})
			if err != nil || !ok {
				t.Fatalf("unexpected second result: ok=%v err=%v", ok, err)
			}
			if first != second {
				t.Errorf("Normalize is not idempotent: first=%q second=%q", first, second)
			}
		})
	}
}

func TestPreserveHTTPS(t *testing.T) {
	got, ok, err := Normalize("http://docs.example.com/guide", "https://docs.example.com/", NormalizeOptions{PreserveHTTPS: true})
	if err != nil || !ok {
		t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
	}
	if got != "https://docs.example.com/guide" {
		t.Errorf("expected same-host http to be upgraded to https, got %q", got)
	}
}

func TestBaseDomain(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://docs.example.com/guide", "example.com"},
		{"https://www.example.com/guide", "example.com"},
		{"https://example.co.uk/guide", "example.co.uk"},
		{"https://sub.example.co.uk/guide", "example.co.uk"},
		{"https://example.com/", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			u, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", tt.input, err)
			}
			if got := BaseDomain(*u); got != tt.expected {
				t.Errorf("BaseDomain(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsExternal(t *testing.T) {
	tests := []struct {
		url      string
		base     string
		expected bool
	}{
		{"https://docs.example.com/guide", "example.com", false},
		{"https://other.com/guide", "example.com", true},
		{"mailto:a@example.com", "example.com", true},
		{"javascript:void(0)", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsExternal(tt.url, tt.base); got != tt.expected {
				t.Errorf("IsExternal(%q, %q) = %v, want %v", tt.url, tt.base, got, tt.expected)
			}
		})
	}
}

func TestStripTrailingSlash(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/path/", "/path"},
		{"/path//", "/path"},
		{"/path///", "/path"},
		{"/path", "/path"},
		{"/", "/"},
		{"///", "/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := stripTrailingSlash(tt.input)
			if result != tt.expected {
				t.Errorf("stripTrailingSlash(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
