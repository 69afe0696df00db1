package icy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// maxPlaylistSize bounds how much of a non-stream response is read while
// looking for a playlist.
const maxPlaylistSize = 64 * 1024

// parsePLS returns the first FileN= entry of a PLS playlist.
func parsePLS(body io.Reader) (string, error) {
	s := bufio.NewScanner(body)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(line, "File") {
			continue
		}
		_, u, ok := strings.Cut(line, "=")
		if u = strings.TrimSpace(u); ok && u != "" {
			return u, nil
		}
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	return "", fmt.Errorf("no stream URL found in PLS playlist")
}

// parseM3U returns the first http(s) line of an M3U playlist.
func parseM3U(body io.Reader) (string, error) {
	s := bufio.NewScanner(body)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("failed to read playlist: %w", err)
	}

	return "", fmt.Errorf("no stream URL found in M3U playlist")
}

// ResolvePlaylist returns endpoint unchanged when it already serves a stream
// with icy-metaint, or the first stream URL of the PLS or M3U playlist it
// serves.
func (c *Client) ResolvePlaylist(ctx context.Context, endpoint string, cfg Config) (string, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := newStreamRequest(ctx, endpoint, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get(metaintHeader) != "" {
		return endpoint, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	content := string(data)
	contentType := resp.Header.Get("Content-Type")
	trimmed := strings.TrimSpace(content)

	isPLS := strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(req.URL.Path, ".pls") ||
		strings.Contains(content, "[playlist]") ||
		strings.Contains(content, "File1=")

	isM3U := strings.Contains(contentType, "audio/mpegurl") ||
		strings.Contains(contentType, "audio/x-mpegurl") ||
		strings.Contains(contentType, "application/vnd.apple.mpegurl") ||
		strings.HasSuffix(req.URL.Path, ".m3u") ||
		strings.HasSuffix(req.URL.Path, ".m3u8") ||
		strings.Contains(content, "#EXTM3U") ||
		strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")

	switch {
	case isPLS:
		u, err := parsePLS(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse PLS playlist: %w", err)
		}
		return u, nil
	case isM3U:
		u, err := parseM3U(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse M3U playlist: %w", err)
		}
		return u, nil
	}

	return "", fmt.Errorf("URL does not appear to be a stream or playlist (Content-Type: %s)", contentType)
}
