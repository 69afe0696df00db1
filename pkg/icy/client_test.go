package icy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// streamBody lays out interval audio bytes, a length-prefixed metadata block
// and enough trailing audio for every transport to read
// interval+DefaultMaxMetadataLength bytes even with headers in-band.
func streamBody(interval int, metadata string) []byte {
	n := (len(metadata) + 1 + 15) / 16
	block := make([]byte, n*16)
	copy(block, metadata)

	var b bytes.Buffer
	b.Write(bytes.Repeat([]byte{0xAA}, interval))
	b.WriteByte(byte(n))
	b.Write(block)
	b.Write(bytes.Repeat([]byte{0xAA}, DefaultMaxMetadataLength+4096))
	return b.Bytes()
}

// icyHandler serves body with icy-metaint, but only to clients that ask for
// metadata.
func icyHandler(interval int, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		if r.Header.Get("icy-metadata") == "1" {
			w.Header().Set("icy-metaint", strconv.Itoa(interval))
		}
		_, _ = w.Write(body)
	}
}

// serveRaw answers every connection with response after consuming the
// request headers. It stands in for Shoutcast servers net/http cannot emulate.
func serveRaw(t *testing.T, response []byte) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				br := bufio.NewReader(c)
				for {
					line, err := br.ReadString('\n')
					if err != nil || line == "\r\n" {
						break
					}
				}
				_, _ = c.Write(response)
			}(conn)
		}
	}()

	return "http://" + ln.Addr().String() + "/stream"
}

func testConfig(transport Transport) Config {
	cfg := DefaultConfig()
	cfg.Transport = transport
	cfg.Timeout = 5 * time.Second
	return cfg
}

var transports = []Transport{TransportPooled, TransportSocket, TransportFetch}

func TestLookup_AllTransports(t *testing.T) {
	server := httptest.NewServer(icyHandler(8192, streamBody(8192, "StreamTitle='Artist - Song';")))
	defer server.Close()

	c := New(nil)
	for _, tr := range transports {
		t.Run(string(tr), func(t *testing.T) {
			title, err := c.Lookup(context.Background(), server.URL+"/stream", testConfig(tr))
			if err != nil {
				t.Fatalf("Lookup failed: %v", err)
			}
			if title != "Artist - Song" {
				t.Errorf("expected %q, got %q", "Artist - Song", title)
			}
		})
	}
}

func TestReaders_Layout(t *testing.T) {
	body := streamBody(1000, "StreamTitle='Layout';")
	server := httptest.NewServer(icyHandler(1000, body))
	defer server.Close()

	readers := map[Transport]StreamReader{
		TransportPooled: NewPooledReader(&http.Client{Transport: newTransport(true)}),
		TransportSocket: NewSocketReader(),
		TransportFetch:  NewFetchReader(),
	}

	want := 1000 + DefaultMaxMetadataLength
	for tr, r := range readers {
		got, err := r.ReadStream(context.Background(), server.URL, want, testConfig(tr))
		if err != nil {
			t.Fatalf("%s: ReadStream failed: %v", tr, err)
		}
		if !bytes.HasPrefix(body, got) {
			t.Errorf("%s: returned bytes are not a prefix of the body", tr)
		}
		if tr != TransportSocket && len(got) != want {
			t.Errorf("%s: expected %d bytes, got %d", tr, want, len(got))
		}
	}
}

func TestLookup_ShoutcastStatusLine(t *testing.T) {
	body := streamBody(16, "StreamTitle='Old School';")
	response := append([]byte("ICY 200 OK\r\nicy-name: test\r\nicy-metaint: 16\r\n\r\n"), body...)
	streamURL := serveRaw(t, response)

	c := New(nil)
	for _, tr := range transports {
		title, err := c.Lookup(context.Background(), streamURL, testConfig(tr))
		if err != nil {
			t.Fatalf("%s: Lookup failed: %v", tr, err)
		}
		if title != "Old School" {
			t.Errorf("%s: expected %q, got %q", tr, "Old School", title)
		}
	}
}

func TestGetSongTitle_NoMetaint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer server.Close()

	c := New(nil)
	for _, tr := range transports {
		cfg := testConfig(tr)

		if r := c.GetSongTitle(context.Background(), server.URL, cfg); r != (Result{}) {
			t.Errorf("%s: expected zero result, got %+v", tr, r)
		}

		cfg.ShowErrors = true
		r := c.GetSongTitle(context.Background(), server.URL, cfg)
		if r.OK {
			t.Fatalf("%s: expected failure", tr)
		}
		if r.String() != ErrIntervalUnavailable.Error() {
			t.Errorf("%s: expected %q, got %q", tr, ErrIntervalUnavailable.Error(), r.String())
		}
	}
}

func TestLookup_EmptyAndMalformed(t *testing.T) {
	empty := bytes.Repeat([]byte{0xAA}, 64+DefaultMaxMetadataLength+4096)
	empty[64] = 0
	emptyServer := httptest.NewServer(icyHandler(64, empty))
	defer emptyServer.Close()

	malformedServer := httptest.NewServer(icyHandler(64, streamBody(64, "StreamTitle=nothing here;")))
	defer malformedServer.Close()

	c := New(nil)
	for _, tr := range transports {
		_, err := c.Lookup(context.Background(), emptyServer.URL, testConfig(tr))
		if !errors.Is(err, ErrEmptyMetadata) {
			t.Errorf("%s: expected ErrEmptyMetadata, got %v", tr, err)
		}

		_, err = c.Lookup(context.Background(), malformedServer.URL, testConfig(tr))
		if !errors.Is(err, ErrMalformedMetadata) {
			t.Errorf("%s: expected ErrMalformedMetadata, got %v", tr, err)
		}
	}
}

func TestLookup_ShortStream(t *testing.T) {
	body := streamBody(64, "StreamTitle='Too Short';")[:200]
	server := httptest.NewServer(icyHandler(64, body))
	defer server.Close()

	c := New(nil)
	for _, tr := range transports {
		_, err := c.Lookup(context.Background(), server.URL, testConfig(tr))
		if !errors.Is(err, ErrTransport) {
			t.Errorf("%s: expected ErrTransport, got %v", tr, err)
		}
	}
}

func TestLookup_HugeMetaintShortBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("icy-metaint", "1500000000")
		_, _ = w.Write(bytes.Repeat([]byte{0xAA}, 100))
	}))
	defer server.Close()

	c := New(nil)
	for _, tr := range transports {
		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)

		_, err := c.Lookup(context.Background(), server.URL, testConfig(tr))

		runtime.ReadMemStats(&after)
		if !errors.Is(err, ErrTransport) {
			t.Errorf("%s: expected ErrTransport, got %v", tr, err)
		}
		if delta := after.TotalAlloc - before.TotalAlloc; delta > 64<<20 {
			t.Errorf("%s: allocated %d MiB for a 100 byte body", tr, delta>>20)
		}
	}
}

func TestLookup_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	streamURL := "http://" + ln.Addr().String() + "/"
	ln.Close()

	cfg := testConfig(TransportSocket)
	cfg.ShowErrors = true

	r := New(nil).GetSongTitle(context.Background(), streamURL, cfg)
	if r.OK || !strings.HasPrefix(r.Error, ErrIntervalUnavailable.Error()) {
		t.Errorf("expected interval error, got %+v", r)
	}
}

func TestLookup_TimeoutReleasesConnections(t *testing.T) {
	var active atomic.Int32
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		active.Add(1)
		defer active.Add(-1)

		w.Header().Set("icy-metaint", "8192")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 100))
		w.(http.Flusher).Flush()

		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	c := New(nil)
	for _, tr := range transports {
		cfg := testConfig(tr)
		cfg.Timeout = 300 * time.Millisecond

		start := time.Now()
		_, err := c.Lookup(context.Background(), server.URL, cfg)
		if !errors.Is(err, ErrTransport) {
			t.Errorf("%s: expected ErrTransport, got %v", tr, err)
		}
		if elapsed := time.Since(start); elapsed > 3*time.Second {
			t.Errorf("%s: lookup took %s, timeout not applied", tr, elapsed)
		}

		deadline := time.Now().Add(5 * time.Second)
		for active.Load() != 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if n := active.Load(); n != 0 {
			t.Errorf("%s: %d server connections still open", tr, n)
		}
	}
}

func TestResolveInterval(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		interval int
		err      bool
	}{
		{"valid", "16000", 16000, false},
		{"whitespace", " 8192 ", 8192, false},
		{"missing", "", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-1", 0, true},
		{"garbage", "lots", 0, true},
	}

	c := New(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tc.header != "" {
					w.Header().Set("Icy-Metaint", tc.header)
				}
			}))
			defer server.Close()

			interval, err := c.ResolveInterval(context.Background(), server.URL, DefaultConfig())
			if tc.err {
				if !errors.Is(err, ErrIntervalUnavailable) {
					t.Errorf("expected ErrIntervalUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if interval != tc.interval {
				t.Errorf("expected %d, got %d", tc.interval, interval)
			}
		})
	}
}

func TestResolveInterval_SendsHeaders(t *testing.T) {
	var gotMeta, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMeta = r.Header.Get("icy-metadata")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("icy-metaint", "8192")
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.UserAgent = "streamtitle-test"

	c := New(nil)
	first, err := c.ResolveInterval(context.Background(), server.URL, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.ResolveInterval(context.Background(), server.URL, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Errorf("interval changed between probes: %d then %d", first, second)
	}
	if gotMeta != "1" {
		t.Errorf("expected icy-metadata 1, got %q", gotMeta)
	}
	if gotUA != "streamtitle-test" {
		t.Errorf("expected user agent %q, got %q", "streamtitle-test", gotUA)
	}
}

func TestLookup_UnknownTransport(t *testing.T) {
	_, err := New(nil).Lookup(context.Background(), "http://127.0.0.1:1/", Config{Transport: "carrier-pigeon"})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestSocketAddr(t *testing.T) {
	cases := []struct {
		url    string
		addr   string
		secure bool
	}{
		{"http://radio.example.com/live", "radio.example.com:80", false},
		{"http://radio.example.com:8000/live", "radio.example.com:8000", false},
		{"https://radio.example.com/live", "radio.example.com:443", true},
		{"https://radio.example.com:8443/live", "radio.example.com:8443", true},
	}

	for _, tc := range cases {
		u, err := url.Parse(tc.url)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.url, err)
		}
		addr, secure, err := socketAddr(u)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.url, err)
		}
		if addr != tc.addr || secure != tc.secure {
			t.Errorf("%s: expected %s secure=%v, got %s secure=%v", tc.url, tc.addr, tc.secure, addr, secure)
		}
	}
}
