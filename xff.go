package proxytrace

import "strings"

// typicalChainCapacity is the initial capacity used when building chains.
//
// Most deployments have short chains (around 1-5 hops). Preallocating 8 avoids
// reallocations in common cases without meaningful memory overhead.
const typicalChainCapacity = 8

// BuildChain builds the nearest-first address chain for a connection.
//
// The chain starts with the connection's remote address (port removed when
// remoteAddr is in host:port form) followed by the X-Forwarded-For entries
// from right to left: the right-most entry was appended by the proxy that
// connected to us and is therefore hop 1. Multiple header lines are
// concatenated in the order received before reversing. Empty entries are
// dropped.
func BuildChain(remoteAddr string, xffValues ...string) ([]string, error) {
	return buildChain("", remoteAddr, xffValues, 0)
}

// buildChain is BuildChain with a source label for errors and an optional
// bound on the total chain length (0 means unbounded).
func buildChain(sourceName, remoteAddr string, xffValues []string, maxLength int) ([]string, error) {
	host := remoteHost(remoteAddr)
	if host == "" {
		return nil, &MalformedChainError{Source: sourceName, Reason: "missing remote address"}
	}

	forwarded, err := parseXFFValues(sourceName, xffValues, maxLength)
	if err != nil {
		return nil, err
	}

	chain := make([]string, 0, len(forwarded)+1)
	chain = append(chain, host)
	for i := len(forwarded) - 1; i >= 0; i-- {
		chain = append(chain, forwarded[i])
	}

	return chain, nil
}

// parseXFFValues splits X-Forwarded-For header values into entries in wire
// order. When maxLength is positive, the entries plus the remote address may
// not exceed it.
func parseXFFValues(sourceName string, values []string, maxLength int) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	parts := make([]string, 0, typicalChainCapacity)
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}

			if maxLength > 0 && len(parts)+1 >= maxLength {
				return nil, &ChainTooLongError{
					Source:      sourceName,
					ChainLength: len(parts) + 2,
					MaxLength:   maxLength,
				}
			}
			parts = append(parts, trimmed)
		}
	}
	return parts, nil
}
