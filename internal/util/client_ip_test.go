package util

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:4242"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := ClientIP(r); ip != "203.0.113.7" {
		t.Fatalf("expected forwarded ip, got %q", ip)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	if ip := ClientIP(r); ip != "192.0.2.10" {
		t.Fatalf("expected remote addr host, got %q", ip)
	}
}

func TestClientIPIgnoresGarbageForwardedFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	r.Header.Set("X-Forwarded-For", "not-an-ip")
	if ip := ClientIP(r); ip != "192.0.2.10" {
		t.Fatalf("expected remote addr host, got %q", ip)
	}
}
