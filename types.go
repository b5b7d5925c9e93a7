package proxytrace

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTrust = errors.New("invalid trust specification")

	ErrMalformedChain = errors.New("malformed address chain")

	ErrTrustEvaluation = errors.New("trust evaluation failed")

	ErrInvalidAddress = errors.New("invalid IP address")

	ErrChainTooLong = errors.New("X-Forwarded-For chain too long")
)

// ConfigurationError reports a trust entry that could not be compiled.
type ConfigurationError struct {
	Entry string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("%v: %v", ErrInvalidTrust, e.Err)
	}
	return fmt.Sprintf("%v: entry %q: %v", ErrInvalidTrust, e.Entry, e.Err)
}

func (e *ConfigurationError) Unwrap() []error {
	return []error{ErrInvalidTrust, e.Err}
}

// MalformedChainError reports an address chain that cannot be resolved,
// usually because the adapter produced no entries.
type MalformedChainError struct {
	Source string
	Reason string
}

func (e *MalformedChainError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%v: %s", ErrMalformedChain, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Source, ErrMalformedChain, e.Reason)
}

func (e *MalformedChainError) Unwrap() error {
	return ErrMalformedChain
}

// TrustEvaluationError reports a trust predicate failure for one hop.
type TrustEvaluationError struct {
	Address string
	Hop     int
	Err     error
}

func (e *TrustEvaluationError) Error() string {
	return fmt.Sprintf("%v (address=%q, hop=%d): %v", ErrTrustEvaluation, e.Address, e.Hop, e.Err)
}

func (e *TrustEvaluationError) Unwrap() []error {
	return []error{ErrTrustEvaluation, e.Err}
}

type ChainTooLongError struct {
	Source      string
	ChainLength int
	MaxLength   int
}

func (e *ChainTooLongError) Error() string {
	return fmt.Sprintf("%s: %v (chain_length=%d, max_length=%d)",
		e.Source, ErrChainTooLong, e.ChainLength, e.MaxLength)
}

func (e *ChainTooLongError) Unwrap() error {
	return ErrChainTooLong
}

// Trace is the resolved origin of a request.
//
// Peer is the originating client. Proxy is the directly connected relaying
// hop and is empty when the connection came straight from the peer.
// IntermediateProxies lists the hops between Proxy and Peer, nearest first.
type Trace struct {
	Peer                string   `json:"peer"`
	Proxy               string   `json:"proxy,omitempty"`
	IntermediateProxies []string `json:"intermediate_proxies"`
}

// HasProxy reports whether the request was relayed by at least one proxy.
func (t Trace) HasProxy() bool {
	return t.Proxy != ""
}

// Hops returns the number of chain entries the trace accounts for.
func (t Trace) Hops() int {
	if t.Peer == "" {
		return 0
	}

	hops := 1 + len(t.IntermediateProxies)
	if t.HasProxy() {
		hops++
	}
	return hops
}
