/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"slices"
	"time"
)

const (
	maxSelected = 2

	outcomeMatch    = "match"
	outcomeMismatch = "mismatch"

	matchBackground    = "#c8f7c5"
	mismatchBackground = "#f7c5c5"
	matchSound         = soundsPath + "/yes.mp3"
	mismatchSound      = soundsPath + "/no.mp3"
)

// Layer names the part of a tile a press landed on. Presses on the control
// are consumed there and never reach the tile underneath.
type Layer string

const (
	LayerControl Layer = "control"
	LayerTile    Layer = "tile"
)

// BoardMessage carries the whole board, sent when a view connects.
type BoardMessage struct {
	Type         string `json:"type"` // "board"
	Level        int    `json:"level"`
	Tiles        []Tile `json:"tiles"`
	Selection    []int  `json:"selection"`
	Background   string `json:"background"`
	MatchedPairs int    `json:"matched_pairs"`
	Pairs        int    `json:"pairs"`
	Solved       bool   `json:"solved"`
}

// TileMessage carries the new state of a single tile.
type TileMessage struct {
	Type string `json:"type"` // "tile"
	Tile Tile   `json:"tile"`
}

// FeedbackMessage reports the outcome of a completed pair.
type FeedbackMessage struct {
	Type         string `json:"type"`    // "feedback"
	Outcome      string `json:"outcome"` // "match" or "mismatch"
	Positions    []int  `json:"positions"`
	Background   string `json:"background"`
	Sound        string `json:"sound"`
	MatchedPairs int    `json:"matched_pairs"`
	Solved       bool   `json:"solved"`
}

// ResetMessage clears the feedback flash.
type ResetMessage struct {
	Type       string `json:"type"` // "reset"
	Background string `json:"background"`
}

// scheduleFunc arranges for the reset numbered gen to be delivered back to
// the session after d. The returned func cancels it.
type scheduleFunc func(gen uint64, d time.Duration) (cancel func())

type SessionConfig struct {
	Level         int
	Round         []string
	Host          string
	Sources       SourceResolver
	IconExt       string
	ResetDelay    time.Duration
	RetireMatches bool
	Schedule      scheduleFunc
}

// Session is one round of the game: the tiles, what is selected, and the
// feedback currently showing. It is not safe for concurrent use; a Hub
// drives it from a single goroutine.
type Session struct {
	level         int
	round         []string
	tiles         map[int]*Tile
	selection     []int
	matchedPairs  int
	background    string
	resetDelay    time.Duration
	retireMatches bool

	schedule    scheduleFunc
	resetGen    uint64
	cancelReset func()
}

func NewSession(sc SessionConfig) *Session {
	s := &Session{
		level:         sc.Level,
		round:         slices.Clone(sc.Round),
		tiles:         make(map[int]*Tile, len(sc.Round)),
		selection:     make([]int, 0, maxSelected),
		resetDelay:    sc.ResetDelay,
		retireMatches: sc.RetireMatches,
		schedule:      sc.Schedule,
	}

	iconExt := sc.IconExt
	if iconExt == "" {
		iconExt = "jpeg"
	}

	for i, ref := range s.round {
		s.tiles[i] = newTile(ref, i, sc.Sources.Resolve(sc.Host, ref), iconExt)
	}

	return s
}

func (s *Session) Level() int { return s.level }

func (s *Session) Round() []string { return slices.Clone(s.round) }

func (s *Session) Selection() []int { return slices.Clone(s.selection) }

func (s *Session) MatchedPairs() int { return s.matchedPairs }

func (s *Session) Background() string { return s.background }

func (s *Session) Solved() bool {
	return s.retireMatches && len(s.round) > 0 && s.matchedPairs == len(s.round)/2
}

// Tile returns a copy of the tile at position.
func (s *Session) Tile(position int) (Tile, bool) {
	t, ok := s.tiles[position]
	if !ok {
		return Tile{}, false
	}

	return *t, true
}

func (s *Session) Board() BoardMessage {
	tiles := make([]Tile, 0, len(s.round))
	for i := range s.round {
		tiles = append(tiles, *s.tiles[i])
	}

	return BoardMessage{
		Type:         "board",
		Level:        s.level,
		Tiles:        tiles,
		Selection:    s.Selection(),
		Background:   s.background,
		MatchedPairs: s.matchedPairs,
		Pairs:        len(s.round) / 2,
		Solved:       s.Solved(),
	}
}

func tileMessage(t *Tile) TileMessage {
	return TileMessage{Type: "tile", Tile: *t}
}

// Press dispatches a click on position to the layer it hit and returns the
// messages describing what changed.
func (s *Session) Press(position int, layer Layer) ([]any, error) {
	t, ok := s.tiles[position]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTile, position)
	}

	switch layer {
	case LayerControl:
		if !t.toggle() {
			return nil, nil
		}
		return []any{tileMessage(t)}, nil
	case LayerTile:
		return s.toggleSelection(t), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, layer)
	}
}

// Ended records that the clip at position played to the end.
func (s *Session) Ended(position int) ([]any, error) {
	t, ok := s.tiles[position]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTile, position)
	}

	if !t.ended() {
		return nil, nil
	}

	return []any{tileMessage(t)}, nil
}

func (s *Session) toggleSelection(t *Tile) []any {
	if !t.Active {
		return nil
	}

	if t.Selected {
		t.Selected = false
		s.selection = slices.DeleteFunc(s.selection, func(p int) bool { return p == t.Position })

		return []any{tileMessage(t)}
	}

	if len(s.selection) >= maxSelected {
		return nil
	}

	t.Selected = true
	s.selection = append(s.selection, t.Position)

	out := []any{tileMessage(t)}
	if len(s.selection) == maxSelected {
		out = append(out, s.checkCompatibility()...)
	}

	return out
}

func (s *Session) checkCompatibility() []any {
	if len(s.selection) != maxSelected {
		return nil
	}

	a, b := s.tiles[s.selection[0]], s.tiles[s.selection[1]]

	fb := FeedbackMessage{
		Type:      "feedback",
		Positions: s.Selection(),
	}

	var out []any

	if ResolveGroup(a.Reference) == ResolveGroup(b.Reference) {
		fb.Outcome = outcomeMatch
		fb.Background = matchBackground
		fb.Sound = matchSound

		if s.retireMatches {
			s.matchedPairs++
			for _, t := range []*Tile{a, b} {
				if t.deactivate() {
					out = append(out, tileMessage(t))
				}
			}
		}
	} else {
		fb.Outcome = outcomeMismatch
		fb.Background = mismatchBackground
		fb.Sound = mismatchSound
	}

	fb.MatchedPairs = s.matchedPairs
	fb.Solved = s.Solved()

	s.background = fb.Background
	s.scheduleReset()

	return append([]any{fb}, out...)
}

// scheduleReset replaces any pending reset with a new one.
func (s *Session) scheduleReset() {
	if s.cancelReset != nil {
		s.cancelReset()
		s.cancelReset = nil
	}

	s.resetGen++

	cancel := func() {}
	if s.schedule != nil {
		if c := s.schedule(s.resetGen, s.resetDelay); c != nil {
			cancel = c
		}
	}
	s.cancelReset = cancel
}

// PendingReset returns the generation of the reset currently scheduled, or
// zero if none is.
func (s *Session) PendingReset() uint64 {
	if s.cancelReset == nil {
		return 0
	}

	return s.resetGen
}

// Reset clears the flash and the selection. Resets superseded by a newer
// pair are ignored.
func (s *Session) Reset(gen uint64) []any {
	if gen != s.resetGen || s.cancelReset == nil {
		return nil
	}
	s.cancelReset = nil

	s.background = ""
	s.selection = s.selection[:0]

	out := []any{ResetMessage{Type: "reset"}}
	for i := range s.round {
		if t := s.tiles[i]; t.Selected {
			t.Selected = false
			out = append(out, tileMessage(t))
		}
	}

	return out
}

// Close cancels any pending reset.
func (s *Session) Close() {
	if s.cancelReset != nil {
		s.cancelReset()
		s.cancelReset = nil
	}
}
