/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strconv"
)

const (
	labelPlay  = "Play"
	labelPause = "Pause"

	inactiveFilter     = "grayscale(100%)"
	inactiveBackground = "grey"
)

// Tile is one clickable unit on the board: an icon, a play/pause control
// and the clip it is bound to.
type Tile struct {
	Position  int    `json:"position"`
	Icon      string `json:"icon"`
	Alt       string `json:"alt"`
	Source    string `json:"source"`
	Preload   string `json:"preload"`
	Label     string `json:"label"`
	Playing   bool   `json:"playing"`
	Selected  bool   `json:"selected"`
	Active    bool   `json:"active"`
	Filter    string `json:"filter,omitempty"`
	Backdrop  string `json:"background,omitempty"`
	Reference string `json:"-"`
}

// newTile builds the tile for reference at position. The icon is chosen by
// position alone and says nothing about the clip.
func newTile(reference string, position int, source, iconExt string) *Tile {
	n := strconv.Itoa(position + 1)

	return &Tile{
		Position:  position,
		Icon:      iconsPath + "/" + n + "." + iconExt,
		Alt:       "Tile " + n,
		Source:    source,
		Preload:   "auto",
		Label:     labelPlay,
		Active:    true,
		Reference: reference,
	}
}

// toggle flips playback. It reports whether anything changed.
func (t *Tile) toggle() bool {
	if !t.Active {
		return false
	}

	t.Playing = !t.Playing
	if t.Playing {
		t.Label = labelPause
	} else {
		t.Label = labelPlay
	}

	return true
}

// ended is called when the clip finishes on its own.
func (t *Tile) ended() bool {
	if !t.Playing && t.Label == labelPlay {
		return false
	}

	t.Playing = false
	t.Label = labelPlay

	return true
}

// deactivate disables the control and grays the tile out. There is no way
// back.
func (t *Tile) deactivate() bool {
	if !t.Active {
		return false
	}

	t.Active = false
	t.Playing = false
	t.Label = labelPlay
	t.Filter = inactiveFilter
	t.Backdrop = inactiveBackground

	return true
}
