package proxytrace

import "net/netip"

// trustedProxyMatcher answers prefix membership with one binary trie per
// address family. Lookups are allocation-free and the matcher is immutable
// once built.
type trustedProxyMatcher struct {
	ipv4Root *prefixTrieNode
	ipv6Root *prefixTrieNode
	prefixes []netip.Prefix
}

type prefixTrieNode struct {
	children [2]*prefixTrieNode
	terminal bool
}

func buildTrustedProxyMatcher(prefixes []netip.Prefix) *trustedProxyMatcher {
	matcher := &trustedProxyMatcher{
		prefixes: make([]netip.Prefix, 0, len(prefixes)),
	}

	for _, prefix := range prefixes {
		if !prefix.IsValid() {
			continue
		}

		prefix = prefix.Masked()
		matcher.prefixes = append(matcher.prefixes, prefix)

		addr := prefix.Addr()
		if addr.Is4() {
			if matcher.ipv4Root == nil {
				matcher.ipv4Root = &prefixTrieNode{}
			}

			bytes := addr.As4()
			insertPrefix(matcher.ipv4Root, bytes[:], prefix.Bits())
			continue
		}

		if matcher.ipv6Root == nil {
			matcher.ipv6Root = &prefixTrieNode{}
		}

		bytes := addr.As16()
		insertPrefix(matcher.ipv6Root, bytes[:], prefix.Bits())
	}

	return matcher
}

func insertPrefix(root *prefixTrieNode, addr []byte, bits int) {
	node := root
	for bitIndex := range bits {
		bit := addrBit(addr, bitIndex)
		child := node.children[bit]
		if child == nil {
			child = &prefixTrieNode{}
			node.children[bit] = child
		}
		node = child
	}

	node.terminal = true
}

func (m *trustedProxyMatcher) contains(ip netip.Addr) bool {
	if m == nil || !ip.IsValid() {
		return false
	}

	ip = normalizeIP(ip)

	if ip.Is4() {
		bytes := ip.As4()
		return trieContains(m.ipv4Root, bytes[:])
	}

	bytes := ip.As16()
	return trieContains(m.ipv6Root, bytes[:])
}

func trieContains(root *prefixTrieNode, addr []byte) bool {
	node := root
	if node == nil {
		return false
	}

	if node.terminal {
		return true
	}

	for bitIndex := range len(addr) * 8 {
		node = node.children[addrBit(addr, bitIndex)]
		if node == nil {
			return false
		}
		if node.terminal {
			return true
		}
	}

	return false
}

func addrBit(addr []byte, bitIndex int) int {
	byteIndex := bitIndex / 8
	shift := uint(7 - (bitIndex % 8))
	if ((addr[byteIndex] >> shift) & 1) == 1 {
		return 1
	}
	return 0
}

// match is the TrustFunc produced for address-based trust specs. The hop
// index is ignored.
func (m *trustedProxyMatcher) match(addr string, _ int) (bool, error) {
	ip, err := parseHopAddr(addr)
	if err != nil {
		return false, err
	}
	return m.contains(ip), nil
}
