/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net"
	"regexp"
	"slices"
	"strings"
)

const (
	iconsPath  = "Icons"
	soundsPath = "Sounds"
)

var qualifiedSource = regexp.MustCompile(`^(https?:|//|file:|/)`)

// SourceResolver maps an audio reference to the URL the browser plays.
// The production host serves clips from a different path than every
// other host does.
type SourceResolver struct {
	ProductionHosts  []string
	ProductionPrefix string
	FallbackPrefix   string
}

func (s SourceResolver) isProduction(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}

	return slices.ContainsFunc(s.ProductionHosts, func(p string) bool {
		return strings.EqualFold(p, host)
	})
}

// Resolve returns the playback source for reference as seen from host.
// References that are already absolute URLs or rooted paths are returned
// unchanged.
func (s SourceResolver) Resolve(host, reference string) string {
	if qualifiedSource.MatchString(reference) {
		return reference
	}

	prefix := s.FallbackPrefix
	if s.isProduction(host) {
		prefix = s.ProductionPrefix
	}

	return strings.TrimSuffix(prefix, "/") + "/" + reference
}

// ResolveGroup returns the folder a reference lives in, or the whole
// reference when it has no separator. Nested groups such as "Eb7/Flute"
// keep their full path.
func ResolveGroup(reference string) string {
	i := strings.LastIndex(reference, "/")
	if i < 0 {
		return reference
	}

	return reference[:i]
}
