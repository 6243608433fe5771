package utils

import (
	"net"
	"strings"
)

// IsAnyAddress reports whether addr is absent or the unspecified address.
func IsAnyAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return true
	}
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsUnspecified()
}

// RuleNet builds the network for an address/prefix-length pair. A missing
// mask means a host route. Returns nil for absent or unparsable addresses.
func RuleNet(addr string, mask *int) *net.IPNet {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return nil
	}
	bits := 32
	if ip.To4() == nil {
		bits = 128
	} else {
		ip = ip.To4()
	}
	ones := bits
	if mask != nil {
		ones = *mask
	}
	if ones < 0 || ones > bits {
		return nil
	}
	m := net.CIDRMask(ones, bits)
	return &net.IPNet{IP: ip.Mask(m), Mask: m}
}

// PortSpan returns end-start when both bounds are set.
func PortSpan(start, end *int) (int, bool) {
	if start == nil || end == nil {
		return 0, false
	}
	return *end - *start, true
}
