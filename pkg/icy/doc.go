// Package icy reads the current track title from an ICY (Shoutcast/Icecast) stream.
//
// A lookup is a single synchronous pass:
//   - Interval probe: a GET with "icy-metadata: 1" whose icy-metaint response header gives the audio bytes per metadata block
//   - Stream read: interval plus MaxMetadataLength bytes are read through the pooled, socket or fetch transport
//   - Block decode: the length byte at the interval times 16 gives the metadata block
//   - Title extraction: the text between "='" and "';"
//
// Nothing is cached or retried between lookups.
package icy
