/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testResolver() SourceResolver {
	return SourceResolver{
		ProductionHosts:  []string{"konradbogen.com", "www.konradbogen.com"},
		ProductionPrefix: "/play/",
		FallbackPrefix:   "/play_content/",
	}
}

func TestResolveSource(t *testing.T) {
	tests := []struct {
		name      string
		host      string
		reference string
		want      string
	}{
		{"fallback host", "localhost", "foo/1.mp3", "/play_content/foo/1.mp3"},
		{"fallback host with port", "localhost:8080", "foo/1.mp3", "/play_content/foo/1.mp3"},
		{"production host", "konradbogen.com", "foo/1.mp3", "/play/foo/1.mp3"},
		{"production host with port", "www.konradbogen.com:443", "foo/1.mp3", "/play/foo/1.mp3"},
		{"production host is case insensitive", "KonradBogen.com", "foo/1.mp3", "/play/foo/1.mp3"},
		{"https url", "localhost", "https://x/y.mp3", "https://x/y.mp3"},
		{"https url on production", "konradbogen.com", "https://x/y.mp3", "https://x/y.mp3"},
		{"http url", "localhost", "http://x/y.mp3", "http://x/y.mp3"},
		{"protocol relative", "localhost", "//cdn/y.mp3", "//cdn/y.mp3"},
		{"file url", "localhost", "file:///tmp/y.mp3", "file:///tmp/y.mp3"},
		{"root relative", "konradbogen.com", "/abs/y.mp3", "/abs/y.mp3"},
	}

	r := testResolver()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.host, tt.reference))
		})
	}
}

func TestResolveSourcePrefixWithoutSlash(t *testing.T) {
	r := SourceResolver{ProductionPrefix: "/play", FallbackPrefix: "/content"}

	assert.Equal(t, "/content/foo/1.mp3", r.Resolve("example.com", "foo/1.mp3"))
}

func TestResolveSourceIPv6Host(t *testing.T) {
	r := SourceResolver{
		ProductionHosts:  []string{"::1"},
		ProductionPrefix: "/play/",
		FallbackPrefix:   "/play_content/",
	}

	for _, host := range []string{"[::1]", "[::1]:8080", "::1"} {
		assert.Equal(t, "/play/foo/1.mp3", r.Resolve(host, "foo/1.mp3"), "host %q", host)
	}

	assert.Equal(t, "/play_content/foo/1.mp3", r.Resolve("[::2]", "foo/1.mp3"))
}

func TestResolveGroup(t *testing.T) {
	assert.Equal(t, "Eb7/Flute", ResolveGroup("Eb7/Flute/2.mp3"))
	assert.Equal(t, "Poldi", ResolveGroup("Poldi/3.mp3"))
	assert.Equal(t, "singleSegment", ResolveGroup("singleSegment"))
	assert.Equal(t, "Lucky4/1", ResolveGroup("Lucky4/1/4.mp3"))
}
