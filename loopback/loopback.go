// Package loopback rewrites loopback-hostname URLs to a host-reachable alias
// when running inside a container, per spec §4.11. Grounded on
// log/logger.go's RedactURL idiom of parsing and mutating a url.URL, though
// the rewrite/detection logic itself has no third-party grounding in the
// pack (see DESIGN.md).
package loopback

import (
	"net/http"
	"net/url"
	"os"

	"github.com/capsoftware/cap-media-server/config"
)

const defaultHostAlias = "host.docker.internal"
const defaultMarkerPath = "/.dockerenv"

// Bridge rewrites outbound URLs whose hostname is a loopback alias so they
// resolve from inside a container to the host machine, per spec §4.11.
type Bridge struct {
	containerized bool
	alias         string
}

// Detect inspects the environment once at startup: the existence of the
// container marker file (cli.LoopbackMarkerPath, default /.dockerenv) flips
// containerized on; cli.HostAliasOverride only replaces the default alias.
func Detect(cli config.Cli) *Bridge {
	marker := cli.LoopbackMarkerPath
	if marker == "" {
		marker = defaultMarkerPath
	}
	_, statErr := os.Stat(marker)
	containerized := statErr == nil

	alias := cli.HostAliasOverride
	if alias == "" {
		alias = defaultHostAlias
	}

	return &Bridge{containerized: containerized, alias: alias}
}

// Rewrite returns a URL with its loopback hostname replaced by the
// host-reachable alias, plus a header set that preserves the original
// authority as a Host header. When not containerized, or the hostname isn't
// a loopback alias, the URL and an empty header set are returned unchanged.
func (b *Bridge) Rewrite(u *url.URL) (*url.URL, http.Header) {
	header := http.Header{}
	if b == nil || !b.containerized || u == nil {
		return u, header
	}
	if !config.LoopbackHostnames[u.Hostname()] {
		return u, header
	}

	original := u.Host
	out := *u
	if port := u.Port(); port != "" {
		out.Host = b.alias + ":" + port
	} else {
		out.Host = b.alias
	}
	header.Set("Host", original)
	return &out, header
}

// RewriteString is a convenience wrapper around Rewrite for callers holding
// a raw URL string (e.g. handler request bodies).
func (b *Bridge) RewriteString(raw string) (string, http.Header, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return raw, http.Header{}, err
	}
	out, header := b.Rewrite(u)
	return out.String(), header, nil
}
