package proxytrace

// PresetDirectConnection configures tracing for direct client-to-app
// traffic.
//
// No hop is trusted, so X-Forwarded-For is ignored and the connection's
// remote address is always the peer.
func PresetDirectConnection() Option {
	return TrustNone()
}

// PresetLoopbackReverseProxy configures tracing for apps behind a reverse
// proxy on the same host (for example NGINX on localhost).
//
// It trusts loopback addresses only.
func PresetLoopbackReverseProxy() Option {
	return func(c *config) error {
		return applyOptions(c,
			TrustAddrs("loopback"),
		)
	}
}

// PresetVMReverseProxy configures tracing for apps behind a reverse proxy
// in a typical VM or private-network setup.
//
// It trusts loopback and unique-local (private) addresses.
func PresetVMReverseProxy() Option {
	return func(c *config) error {
		return applyOptions(c,
			TrustAddrs("loopback", "uniquelocal"),
		)
	}
}
