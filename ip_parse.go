package proxytrace

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// parseIP extracts an IP address from a chain entry. It accepts the
// variations proxies are known to emit:
//   - surrounding whitespace: "  192.168.1.1  "
//   - port suffixes: "192.168.1.1:8080" or "[::1]:8080"
//   - quoted values: "\"192.168.1.1\"" or "'192.168.1.1'"
//   - IPv6 brackets: "[::1]"
//
// Returns an invalid netip.Addr (IsValid() == false) if parsing fails.
func parseIP(s string) netip.Addr {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}
	}

	s = trimMatchedChar(s, '"')
	s = trimMatchedChar(s, '\'')
	if s == "" {
		return netip.Addr{}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = trimMatchedPair(s, '[', ']')

	ip, _ := netip.ParseAddr(s)
	return normalizeIP(ip)
}

// parseHopAddr parses a chain entry for trust matching.
func parseHopAddr(s string) (netip.Addr, error) {
	ip := parseIP(s)
	if !ip.IsValid() {
		return netip.Addr{}, fmt.Errorf("%w %q", ErrInvalidAddress, s)
	}
	return ip, nil
}

// remoteHost strips the port from a connection address in host:port form.
// Anything else, including bracketed IPv6 without a port, is returned
// trimmed but otherwise verbatim.
func remoteHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return strings.TrimSpace(host)
	}
	return remoteAddr
}

func normalizeIP(ip netip.Addr) netip.Addr {
	if ip.Is4In6() {
		return ip.Unmap()
	}
	return ip
}

// parseTrustPrefix compiles one trust entry into a network prefix.
//
// Accepted forms are a bare address, a CIDR whose host bits may be set, and
// an IPv4 address with a dotted netmask ("10.0.0.0/255.0.0.0").
func parseTrustPrefix(entry string) (netip.Prefix, error) {
	addrPart, maskPart, hasMask := strings.Cut(entry, "/")

	addr, err := netip.ParseAddr(trimMatchedPair(strings.TrimSpace(addrPart), '[', ']'))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w %q", ErrInvalidAddress, addrPart)
	}

	if !hasMask {
		addr = normalizeIP(addr)
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}

	bits, err := parseMaskBits(addr, strings.TrimSpace(maskPart))
	if err != nil {
		return netip.Prefix{}, err
	}

	// Hop addresses are unmapped before matching, so a mapped prefix that
	// covers only IPv4 space is rewritten as an IPv4 prefix.
	if addr.Is4In6() && bits >= 96 {
		addr = addr.Unmap()
		bits -= 96
	}

	prefix, err := addr.Prefix(bits)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid prefix length %d: %w", bits, err)
	}
	return prefix, nil
}

func parseMaskBits(addr netip.Addr, mask string) (int, error) {
	if mask == "" {
		return 0, errors.New("empty netmask")
	}

	if strings.Contains(mask, ".") {
		if !addr.Is4() {
			return 0, fmt.Errorf("dotted netmask %q requires an IPv4 address", mask)
		}

		maskAddr, err := netip.ParseAddr(mask)
		if err != nil || !maskAddr.Is4() {
			return 0, fmt.Errorf("invalid netmask %q", mask)
		}

		raw := maskAddr.As4()
		ones, size := net.IPv4Mask(raw[0], raw[1], raw[2], raw[3]).Size()
		if size == 0 {
			return 0, fmt.Errorf("non-contiguous netmask %q", mask)
		}
		return ones, nil
	}

	bits := 0
	for _, r := range mask {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid prefix length %q", mask)
		}
		bits = bits*10 + int(r-'0')
		if bits > addr.BitLen() {
			return 0, fmt.Errorf("prefix length %q exceeds %d bits", mask, addr.BitLen())
		}
	}
	return bits, nil
}

// trimMatchedPair removes one leading and trailing delimiter when both match.
func trimMatchedPair(s string, start, end byte) string {
	if len(s) < 2 {
		return s
	}

	if s[0] != start || s[len(s)-1] != end {
		return s
	}

	return s[1 : len(s)-1]
}

// trimMatchedChar removes one matching leading and trailing character.
func trimMatchedChar(s string, ch byte) string {
	return trimMatchedPair(s, ch, ch)
}
