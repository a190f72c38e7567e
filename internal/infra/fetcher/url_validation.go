// Package fetcher fetches full article pages and extracts readable text,
// used to enrich short search snippets before summarization.
package fetcher

import (
	"fmt"
	"net"
	"net/url"

	"news-digest/internal/usecase/fetch"
)

// lookupIP is replaced in tests.
var lookupIP = net.LookupIP

// validateURL rejects non-http(s) URLs and, when denyPrivateIPs is set,
// hosts that resolve to internal addresses (SSRF).
func validateURL(urlStr string, denyPrivateIPs bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: parse error: %v", fetch.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme '%s' not allowed (only http/https)", fetch.ErrInvalidURL, u.Scheme)
	}
	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", fetch.ErrInvalidURL)
	}
	if !denyPrivateIPs {
		return nil
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: address %s is private", fetch.ErrPrivateIP, ip.String())
		}
		return nil
	}

	ips, err := lookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", fetch.ErrInvalidURL, hostname, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: hostname '%s' resolves to private IP %s", fetch.ErrPrivateIP, hostname, ip.String())
		}
	}
	return nil
}

// isPrivateIP covers loopback, RFC 1918 / RFC 4193 private, link-local and
// the unspecified address, for IPv4 and IPv6.
func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
