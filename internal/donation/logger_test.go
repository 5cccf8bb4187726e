package donation

import (
	"strings"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"ayse@example.com": "a***@example.com",
		"x@y.org":          "x***@y.org",
		"not an email":     "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterSensitive(t *testing.T) {
	cases := []struct {
		in    string
		leaks string
		keeps string
	}{
		{in: `password=hunter2`, leaks: "hunter2", keeps: "password"},
		{in: `Authorization: Bearer abc.def`, leaks: "abc.def", keeps: "Bearer"},
		{in: `dial postgres://app:s3cret@db:5432/forma failed`, leaks: "s3cret", keeps: "postgres://app:"},
		{in: `duplicate key for ayse@example.com`, leaks: "ayse@", keeps: "example.com"},
	}
	for _, tc := range cases {
		got := filterSensitive(tc.in)
		if strings.Contains(got, tc.leaks) {
			t.Fatalf("filterSensitive(%q) = %q leaks %q", tc.in, got, tc.leaks)
		}
		if !strings.Contains(got, tc.keeps) {
			t.Fatalf("filterSensitive(%q) = %q lost %q", tc.in, got, tc.keeps)
		}
	}
}

func TestFilterSensitiveFields(t *testing.T) {
	fields := FilterSensitiveFields(map[string]interface{}{
		"password": "hunter2",
		"Token":    "abc",
		"email":    "m@example.com",
		"count":    3,
	})
	if fields["password"] != "[REDACTED]" || fields["Token"] != "[REDACTED]" {
		t.Fatalf("secrets kept: %v", fields)
	}
	if fields["email"] != "m***@example.com" {
		t.Fatalf("email = %v", fields["email"])
	}
	if fields["count"] != 3 {
		t.Fatalf("count = %v", fields["count"])
	}
}
