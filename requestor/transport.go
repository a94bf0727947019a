// Package requestor implements the single-owner HTTP requestor (C5) and the
// proxy/TLS-aware transport construction it and the streaming client share (C9).
package requestor

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/launchdarkly/go-configtypes"
)

// TransportConfig describes the HTTP transport options a deployment may need: an
// optional forward proxy and optional additional CA certificates. Constructing the
// tunnel itself (NTLM proxy authentication, custom TLS handshakes) is out of scope;
// this only builds a plain *http.Client pointed at a proxy URL and/or trusting extra
// root certificates, the way any Go HTTP client would be configured.
type TransportConfig struct {
	ProxyURL    configtypes.OptURLAbsolute
	CACertFiles configtypes.OptStringList
}

// NewHTTPClient builds an *http.Client honoring cfg, with the given overall request
// timeout.
func NewHTTPClient(cfg TransportConfig, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{}

	if cfg.ProxyURL.IsDefined() {
		proxyURL, err := url.Parse(cfg.ProxyURL.String())
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL.String(), err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if caFiles := cfg.CACertFiles.Values(); len(caFiles) > 0 {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		for _, path := range caFiles {
			if path == "" {
				continue
			}
			pemBytes, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading CA cert file %q: %w", path, err)
			}
			if !pool.AppendCertsFromPEM(pemBytes) {
				return nil, fmt.Errorf("no certificates found in %q", path)
			}
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
