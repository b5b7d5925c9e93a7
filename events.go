package proxytrace

const (
	// SourceValues labels traces built from a remote address and raw
	// X-Forwarded-For value.
	SourceValues = "values"
	// SourceRequest labels traces built from an HTTP request.
	SourceRequest = "request"
	// SourceStream labels traces built from an RPC stream.
	SourceStream = "stream"
)

const (
	securityEventMalformedChain         = "malformed_chain"
	securityEventChainTooLong           = "chain_too_long"
	securityEventTrustEvaluationFailed  = "trust_evaluation_failed"
	securityEventUntrustedHopsDiscarded = "untrusted_hops_discarded"
)
