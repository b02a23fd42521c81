/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/julienschmidt/httprouter"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// contentDir checks that dir exists and is a directory, returning its
// absolute path.
func contentDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}

	return abs, nil
}

// registerContent serves the external asset directories (audio clips,
// tile icons, feedback sounds) when they are configured. Without them the
// server expects a reverse proxy to answer these paths.
func registerContent(cfg *Config, mux *httprouter.Router) error {
	mounts := []struct {
		dir    string
		routes []string
	}{
		{cfg.contentDir, []string{cfg.productionPrefix, cfg.fallbackPrefix}},
		{cfg.iconsDir, []string{"/" + iconsPath + "/"}},
		{cfg.soundsDir, []string{"/" + soundsPath + "/"}},
	}

	seen := make(map[string]bool)

	for _, m := range mounts {
		if m.dir == "" {
			continue
		}

		abs, err := contentDir(m.dir)
		if err != nil {
			return err
		}

		for _, route := range m.routes {
			route = strings.TrimSuffix(route, "/") + "/"

			// Qualified prefixes (e.g. a CDN) are not ours to serve.
			if len(route) < 2 || route[0] != '/' || route[1] == '/' || seen[route] {
				continue
			}
			seen[route] = true

			mux.ServeFiles(cfg.prefix+route+"*filepath", http.Dir(abs))

			logf(cfg, "SERVE: Mounted %s at %s%s", abs, cfg.prefix, route)
		}
	}

	return nil
}
