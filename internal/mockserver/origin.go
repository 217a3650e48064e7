package mockserver

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// originPolicy decides which browser origins may open the admin socket.
//
// A request without an Origin header is not from a browser and is always
// accepted. When the server binds to a loopback address, loopback origins
// are accepted too. Entries of allowed match exactly or, in the form
// "*.example.com", any subdomain. With no entries and a non-loopback bind,
// every origin is accepted.
type originPolicy struct {
	allowed      []string
	loopbackBind bool
}

func newOriginPolicy(host string, allowed []string) *originPolicy {
	return &originPolicy{
		allowed:      allowed,
		loopbackBind: isLoopbackHost(host),
	}
}

func (p *originPolicy) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	if p.loopbackBind && isLoopbackHost(parsed.Hostname()) {
		return true
	}

	for _, allowed := range p.allowed {
		if originMatches(parsed, origin, allowed) {
			return true
		}
	}

	return len(p.allowed) == 0 && !p.loopbackBind
}

func isLoopbackHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func originMatches(parsed *url.URL, origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if !strings.HasPrefix(allowed, "*.") {
		return false
	}
	domain := allowed[1:] // ".example.com"
	host := parsed.Hostname()
	return strings.HasSuffix(host, domain) || host == domain[1:]
}
