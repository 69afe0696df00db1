package icy

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// SocketReader writes a minimal HTTP/1.0 request on a raw connection and
// reads exactly n bytes of the response, headers included. A response shorter
// than n is a short read.
type SocketReader struct{}

func NewSocketReader() *SocketReader {
	return &SocketReader{}
}

func (r *SocketReader) ReadStream(ctx context.Context, endpoint string, n int, cfg Config) ([]byte, error) {
	cfg = cfg.withDefaults()

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, transportError(err)
	}
	addr, secure, err := socketAddr(u)
	if err != nil {
		return nil, transportError(err)
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, transportError(err)
	}
	if secure {
		conn = tls.Client(conn, &tls.Config{ServerName: u.Hostname()})
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		return nil, transportError(err)
	}

	req := fmt.Sprintf("GET %s HTTP/1.0\r\nHost: %s\r\nUser-Agent: %s\r\n%s: 1\r\n\r\n",
		u.RequestURI(), u.Host, cfg.UserAgent, metadataHeader)
	if _, err := io.WriteString(conn, req); err != nil {
		return nil, transportError(err)
	}

	// n comes from the server's icy-metaint, so grow with what arrives.
	buf, err := io.ReadAll(io.LimitReader(conn, int64(n)))
	if err != nil {
		return nil, transportError(errors.Wrap(err, "read response"))
	}
	if len(buf) < n {
		return nil, shortRead(len(buf), n)
	}

	return splitBody(buf)
}

// socketAddr picks host:port for u. https defaults to 443 over TLS, anything
// else to 80 in the clear; an explicit port wins.
func socketAddr(u *url.URL) (string, bool, error) {
	host := u.Hostname()
	if host == "" {
		return "", false, fmt.Errorf("no host in %q", u.String())
	}

	secure := u.Scheme == "https"
	port := "80"
	if secure {
		port = "443"
	}
	if p := u.Port(); p != "" {
		port = p
	}

	return net.JoinHostPort(host, port), secure, nil
}
