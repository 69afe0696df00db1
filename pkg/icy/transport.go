package icy

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	metadataHeader = "icy-metadata"
	metaintHeader  = "icy-metaint"

	dialTimeout = 5 * time.Second
)

// icyConn rewrites the "ICY" status line sent by Shoutcast v1 servers into
// "HTTP/1.0" so net/http can parse the response.
type icyConn struct {
	net.Conn
	checked bool
	pending []byte
}

func newICYConn(c net.Conn) net.Conn {
	return &icyConn{Conn: c}
}

func (c *icyConn) Read(p []byte) (int, error) {
	if !c.checked {
		c.checked = true
		head := make([]byte, 3)
		n, err := io.ReadFull(c.Conn, head)
		head = head[:n]
		if bytes.Equal(head, []byte("ICY")) {
			head = []byte("HTTP/1.0")
		}
		c.pending = head
		if err != nil && len(c.pending) == 0 {
			return 0, err
		}
	}

	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}

	return c.Conn.Read(p)
}

// newTransport builds an http.Transport whose connections understand ICY
// status lines. TLS is layered under the rewrite so it sees plaintext.
func newTransport(keepAlive bool) *http.Transport {
	dialer := &net.Dialer{Timeout: dialTimeout}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return newICYConn(conn), nil
		},
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}
			tc := tls.Client(conn, &tls.Config{ServerName: host})
			if err := tc.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return newICYConn(tc), nil
		},
		DisableCompression:  true,
		DisableKeepAlives:   !keepAlive,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
}

// newStreamRequest builds a GET carrying the metadata opt-in header.
func newStreamRequest(ctx context.Context, endpoint string, cfg Config) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set(metadataHeader, "1")
	return req, nil
}
