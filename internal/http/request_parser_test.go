package http

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"id": "123", "name": " test\u0007 ", "amount": 42.5, "is_expense": false, "end": null}`
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}
	if amount := parser.Get("amount"); amount != "42.5" {
		t.Errorf("Get('amount') = %q, want '42.5'", amount)
	}
	if flag := parser.Get("is_expense"); flag != "0" {
		t.Errorf("Get('is_expense') = %q, want '0'", flag)
	}
	if parser.Has("end") {
		t.Error("Has('end') should be false for null")
	}
	if parser.Optional("missing") != nil {
		t.Error("Optional('missing') should be nil")
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "id=456&name=form+test&category=&args=a&args=b"
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}
	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
	if cat := parser.Optional("category"); cat == nil || *cat != "" {
		t.Errorf("Optional('category') = %v, want pointer to empty string", cat)
	}
	if args := parser.Strings("args"); !reflect.DeepEqual(args, []string{"a", "b"}) {
		t.Errorf("Strings('args') = %v, want [a b]", args)
	}
}

func TestRequestBodyParser_JSONArray(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"args": ["--since", 3]}`))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if args := parser.Strings("args"); !reflect.DeepEqual(args, []string{"--since", "3"}) {
		t.Errorf("Strings('args') = %v, want [--since 3]", args)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(""))

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"broken": `))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Error("Expected error for malformed JSON")
	}

	big := strings.Repeat("a", maxBodyBytes+10)
	req = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("x="+big))
	if err := NewRequestBodyParser(req).Parse(); err != errBodyTooLarge {
		t.Errorf("Parse() error = %v, want errBodyTooLarge", err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.limit = 3

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("fourth request in the window should be rejected")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other clients are counted separately")
	}

	now = now.Add(2 * time.Minute)
	if !rl.allow("10.0.0.1") {
		t.Error("a new window should reset the counter")
	}

	now = now.Add(time.Hour)
	if removed := rl.cleanupStaleEntries(); removed != 2 {
		t.Errorf("cleanupStaleEntries() = %d, want 2", removed)
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"direct client", "203.0.113.7:5555", "", "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5555", "198.51.100.1", "203.0.113.7"},
		{"trusted proxy forwarded", "10.1.2.3:80", "198.51.100.1, 10.1.2.3", "198.51.100.1"},
		{"trusted proxy bad header", "127.0.0.1:80", "not-an-ip", "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if got := extractClientIP(req); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
