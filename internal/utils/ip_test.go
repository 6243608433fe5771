package utils

import (
	"net"
	"testing"
)

func TestIsAnyAddress(t *testing.T) {
	// Empty and unspecified addresses both mean "any source".
	for _, addr := range []string{"", "  ", "0.0.0.0", "::"} {
		if !IsAnyAddress(addr) {
			t.Errorf("expected %q to be treated as any address", addr)
		}
	}
	for _, addr := range []string{"10.0.0.1", "192.168.1.0", "not-an-ip"} {
		if IsAnyAddress(addr) {
			t.Errorf("expected %q not to be treated as any address", addr)
		}
	}
}

func TestRuleNetMasksAddress(t *testing.T) {
	// This test checks the network address is masked and host routes default to /32.
	mask := 24
	n := RuleNet("10.1.2.3", &mask)
	if n == nil || n.String() != "10.1.2.0/24" {
		t.Fatalf("expected 10.1.2.0/24, got %v", n)
	}
	if !n.Contains(net.ParseIP("10.1.2.200")) {
		t.Fatalf("expected network to contain 10.1.2.200")
	}

	host := RuleNet("10.1.2.3", nil)
	if host == nil || host.String() != "10.1.2.3/32" {
		t.Fatalf("expected host route 10.1.2.3/32, got %v", host)
	}

	if RuleNet("", nil) != nil {
		t.Fatalf("expected nil network for empty address")
	}
}

func TestPortSpan(t *testing.T) {
	start, end := 1, 65535
	if span, ok := PortSpan(&start, &end); !ok || span != 65534 {
		t.Fatalf("expected span 65534, got %d (ok=%v)", span, ok)
	}
	if _, ok := PortSpan(&start, nil); ok {
		t.Fatalf("expected half-open range to report ok=false")
	}
}
