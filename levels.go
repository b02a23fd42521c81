/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	minLevel       = 1
	maxLevel       = 10
	groupsPerLevel = 4

	reloadDelay = 100 * time.Millisecond
)

// Every group contributes one clip per member number.
var members = []string{"1", "2", "3", "4"}

//go:embed levels/levels.yaml
var defaultLevels []byte

type levelDocument struct {
	Levels [][]string `yaml:"levels"`
}

// LevelTable maps a level number to the groups that populate its board.
// It is safe for concurrent use; Replace swaps the whole table at once.
type LevelTable struct {
	mu     sync.RWMutex
	levels [][]string
}

func parseLevels(data []byte) ([][]string, error) {
	var doc levelDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("levels: unmarshal: %w", err)
	}

	if len(doc.Levels) != maxLevel {
		return nil, fmt.Errorf("levels: want %d levels, got %d", maxLevel, len(doc.Levels))
	}

	for i, groups := range doc.Levels {
		if len(groups) != groupsPerLevel {
			return nil, fmt.Errorf("levels: level %d: want %d groups, got %d", i+1, groupsPerLevel, len(groups))
		}

		seen := make(map[string]bool, len(groups))
		for _, g := range groups {
			g = strings.Trim(g, "/")
			if g == "" {
				return nil, fmt.Errorf("levels: level %d: empty group", i+1)
			}
			if seen[g] {
				return nil, fmt.Errorf("levels: level %d: duplicate group %q", i+1, g)
			}
			seen[g] = true
		}
	}

	return doc.Levels, nil
}

func newLevelTable(data []byte) (*LevelTable, error) {
	levels, err := parseLevels(data)
	if err != nil {
		return nil, err
	}

	return &LevelTable{levels: levels}, nil
}

// loadLevelTable reads the level table from path, or the built-in table
// when path is empty.
func loadLevelTable(path string) (*LevelTable, error) {
	if path == "" {
		return newLevelTable(defaultLevels)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("levels: load %s: %w", path, err)
	}

	return newLevelTable(data)
}

func (t *LevelTable) Replace(data []byte) error {
	levels, err := parseLevels(data)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.levels = levels
	t.mu.Unlock()

	return nil
}

func (t *LevelTable) Groups(level int) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if level < minLevel || level > len(t.levels) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}

	groups := make([]string, len(t.levels[level-1]))
	for i, g := range t.levels[level-1] {
		groups[i] = strings.Trim(g, "/")
	}

	return groups, nil
}

// ResolveLevel reads the level parameter from a raw query string. Anything
// that is not an integer in [1, 10] selects level 1. Malformed pairs other
// than level are skipped.
func ResolveLevel(rawQuery string) int {
	values, _ := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))

	level, err := strconv.Atoi(strings.TrimSpace(values.Get("level")))
	if err != nil || level < minLevel || level > maxLevel {
		return minLevel
	}

	return level
}

// BuildRound expands each group into its numbered clips, in table order.
func BuildRound(groups []string) []string {
	refs := make([]string, 0, len(groups)*len(members))
	for _, g := range groups {
		for _, n := range members {
			refs = append(refs, g+"/"+n+".mp3")
		}
	}

	return refs
}

// Shuffle permutes refs in place using Fisher-Yates.
func Shuffle(refs []string, rng *rand.Rand) {
	for i := len(refs) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		refs[i], refs[j] = refs[j], refs[i]
	}
}

// NewRound returns the shuffled references for level.
func (t *LevelTable) NewRound(level int, rng *rand.Rand) ([]string, error) {
	groups, err := t.Groups(level)
	if err != nil {
		return nil, err
	}

	refs := BuildRound(groups)
	Shuffle(refs, rng)

	return refs, nil
}

// watchLevels reloads the table whenever path changes on disk, until done
// is closed. The directory is watched rather than the file so that editors
// which replace the file on save are still picked up.
func watchLevels(cfg *Config, table *LevelTable, path string, done <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return err
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer w.Close()

		// Saves often arrive as several events; reload once they settle.
		var (
			timer  *time.Timer
			reload <-chan time.Time
		)

		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDelay)
				} else {
					timer.Reset(reloadDelay)
				}
				reload = timer.C
			case <-reload:
				reload = nil

				data, err := os.ReadFile(abs)
				if err != nil {
					if !errors.Is(err, os.ErrNotExist) {
						errorf("LEVELS: %v", err)
					}
					continue
				}

				if err := table.Replace(data); err != nil {
					errorf("LEVELS: Keeping previous table: %v", err)
					continue
				}

				logf(cfg, "LEVELS: Reloaded %s", abs)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				errorf("LEVELS: %v", err)
			case <-done:
				if timer != nil {
					timer.Stop()
				}
				return
			}
		}
	}()

	return nil
}
