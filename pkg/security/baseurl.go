// Package security checks backend endpoints before any credential is sent to
// them.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// EndpointPolicy relaxes ValidateEndpoint for development setups such as a
// local proxy or a recorded-response server.
type EndpointPolicy struct {
	// AllowHTTP permits plain http. https is always accepted.
	AllowHTTP bool
	// AllowLocal permits loopback, private and link-local targets.
	AllowLocal bool
}

// ValidateEndpoint rejects base URLs the API key must not be sent to. IP
// literals are checked without resolving names.
func ValidateEndpoint(raw string, policy EndpointPolicy) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "invalid base url")
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !policy.AllowHTTP {
			return errors.Errorf("base url %q: http is not allowed", raw)
		}
	default:
		return errors.Errorf("base url %q: unsupported scheme %q", raw, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Errorf("base url %q has no host", raw)
	}
	if !policy.AllowLocal && isLocalName(host) {
		return errors.Errorf("base url %q: local host is not allowed", raw)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// a name, nothing more to check
		return nil
	}
	if addr.Zone() != "" && !policy.AllowLocal {
		return errors.Errorf("base url %q: zoned address is not allowed", raw)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("base url %q: address %s is not routable", raw, addr)
	}
	if !policy.AllowLocal && (addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()) {
		return errors.Errorf("base url %q: local address is not allowed", raw)
	}
	return nil
}

func isLocalName(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}
