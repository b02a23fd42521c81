/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records scheduled resets instead of starting timers.
type fakeScheduler struct {
	scheduled []uint64
	cancelled []uint64
	delays    []time.Duration
}

func (f *fakeScheduler) schedule(gen uint64, d time.Duration) func() {
	f.scheduled = append(f.scheduled, gen)
	f.delays = append(f.delays, d)
	return func() { f.cancelled = append(f.cancelled, gen) }
}

func newTestSession(t *testing.T, retire bool) (*Session, *fakeScheduler) {
	t.Helper()

	f := &fakeScheduler{}
	s := NewSession(SessionConfig{
		Level:         2,
		Round:         []string{"A/1.mp3", "B/1.mp3", "A/2.mp3", "B/2.mp3"},
		Host:          "localhost:8080",
		Sources:       testResolver(),
		IconExt:       "jpeg",
		ResetDelay:    time.Second,
		RetireMatches: retire,
		Schedule:      f.schedule,
	})

	return s, f
}

func press(t *testing.T, s *Session, position int, layer Layer) []any {
	t.Helper()

	out, err := s.Press(position, layer)
	require.NoError(t, err)

	return out
}

func feedbackIn(msgs []any) (FeedbackMessage, bool) {
	for _, m := range msgs {
		if fb, ok := m.(FeedbackMessage); ok {
			return fb, true
		}
	}
	return FeedbackMessage{}, false
}

func TestNewSessionRendersBoard(t *testing.T) {
	s, _ := newTestSession(t, false)

	board := s.Board()
	assert.Equal(t, "board", board.Type)
	assert.Equal(t, 2, board.Level)
	assert.Empty(t, board.Selection)
	assert.Equal(t, 0, board.MatchedPairs)
	assert.Equal(t, 2, board.Pairs)
	assert.Empty(t, board.Background)
	require.Len(t, board.Tiles, 4)

	for i, tile := range board.Tiles {
		assert.Equal(t, i, tile.Position)
		assert.Equal(t, "/play_content/"+s.Round()[i], tile.Source)
		assert.True(t, tile.Active)
	}
}

func TestSelectAndDeselect(t *testing.T) {
	s, f := newTestSession(t, false)

	out := press(t, s, 0, LayerTile)
	require.Len(t, out, 1)
	assert.Equal(t, []int{0}, s.Selection())

	tile, _ := s.Tile(0)
	assert.True(t, tile.Selected)

	out = press(t, s, 0, LayerTile)
	require.Len(t, out, 1)
	assert.Empty(t, s.Selection())

	tile, _ = s.Tile(0)
	assert.False(t, tile.Selected)
	assert.Empty(t, f.scheduled, "deselecting never resolves a pair")
}

func TestThirdSelectionIsRejected(t *testing.T) {
	s, _ := newTestSession(t, false)

	press(t, s, 0, LayerTile)
	press(t, s, 1, LayerTile)

	out := press(t, s, 2, LayerTile)
	assert.Empty(t, out)
	assert.Equal(t, []int{0, 1}, s.Selection())

	tile, _ := s.Tile(2)
	assert.False(t, tile.Selected)
}

func TestSelectedTileCanBeDeselectedWhilePairShows(t *testing.T) {
	s, _ := newTestSession(t, false)

	press(t, s, 0, LayerTile)
	press(t, s, 1, LayerTile)
	press(t, s, 1, LayerTile)

	assert.Equal(t, []int{0}, s.Selection())
}

func TestMatchingPair(t *testing.T) {
	s, f := newTestSession(t, false)

	press(t, s, 0, LayerTile)
	out := press(t, s, 2, LayerTile)

	fb, ok := feedbackIn(out)
	require.True(t, ok)
	assert.Equal(t, outcomeMatch, fb.Outcome)
	assert.Equal(t, matchBackground, fb.Background)
	assert.Equal(t, "Sounds/yes.mp3", fb.Sound)
	assert.Equal(t, []int{0, 2}, fb.Positions)
	assert.Equal(t, matchBackground, s.Background())
	require.Equal(t, []uint64{1}, f.scheduled)
	assert.Equal(t, []time.Duration{time.Second}, f.delays)

	out = s.Reset(1)
	require.NotEmpty(t, out)
	assert.Equal(t, ResetMessage{Type: "reset"}, out[0])
	assert.Empty(t, s.Background())
	assert.Empty(t, s.Selection())

	for i := range 4 {
		tile, _ := s.Tile(i)
		assert.False(t, tile.Selected)
		assert.True(t, tile.Active, "matched tiles stay playable")
	}
	assert.Equal(t, 0, s.MatchedPairs())
}

func TestMismatchedPair(t *testing.T) {
	s, f := newTestSession(t, false)

	press(t, s, 0, LayerTile)
	out := press(t, s, 1, LayerTile)

	fb, ok := feedbackIn(out)
	require.True(t, ok)
	assert.Equal(t, outcomeMismatch, fb.Outcome)
	assert.Equal(t, mismatchBackground, fb.Background)
	assert.Equal(t, "Sounds/no.mp3", fb.Sound)
	require.Equal(t, []uint64{1}, f.scheduled)

	s.Reset(1)
	assert.Empty(t, s.Background())
	assert.Empty(t, s.Selection())
}

func TestNewerPairCancelsPendingReset(t *testing.T) {
	s, f := newTestSession(t, false)

	press(t, s, 0, LayerTile)
	press(t, s, 1, LayerTile)
	press(t, s, 1, LayerTile)

	out := press(t, s, 2, LayerTile)
	fb, ok := feedbackIn(out)
	require.True(t, ok)
	assert.Equal(t, outcomeMatch, fb.Outcome)

	assert.Equal(t, []uint64{1, 2}, f.scheduled)
	assert.Equal(t, []uint64{1}, f.cancelled)
	assert.Equal(t, uint64(2), s.PendingReset())

	assert.Empty(t, s.Reset(1), "a superseded reset does nothing")
	assert.Equal(t, []int{0, 2}, s.Selection())
	assert.Equal(t, matchBackground, s.Background())

	assert.NotEmpty(t, s.Reset(2))
	assert.Empty(t, s.Selection())
	assert.Equal(t, uint64(0), s.PendingReset())

	assert.Empty(t, s.Reset(2), "resets fire once")
}

func TestControlPressDoesNotSelect(t *testing.T) {
	s, _ := newTestSession(t, false)

	out := press(t, s, 3, LayerControl)
	require.Len(t, out, 1)

	msg, ok := out[0].(TileMessage)
	require.True(t, ok)
	assert.True(t, msg.Tile.Playing)
	assert.Equal(t, labelPause, msg.Tile.Label)
	assert.False(t, msg.Tile.Selected)
	assert.Empty(t, s.Selection())

	press(t, s, 3, LayerControl)
	tile, _ := s.Tile(3)
	assert.False(t, tile.Playing)
	assert.Equal(t, labelPlay, tile.Label)
}

func TestEndedRevertsLabel(t *testing.T) {
	s, _ := newTestSession(t, false)

	press(t, s, 1, LayerControl)

	out, err := s.Ended(1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	tile, _ := s.Tile(1)
	assert.Equal(t, labelPlay, tile.Label)
	assert.False(t, tile.Playing)

	out, err = s.Ended(1)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestUnknownPressesAreRejected(t *testing.T) {
	s, _ := newTestSession(t, false)

	_, err := s.Press(42, LayerTile)
	assert.True(t, errors.Is(err, ErrUnknownTile))

	_, err = s.Press(-1, LayerControl)
	assert.True(t, errors.Is(err, ErrUnknownTile))

	_, err = s.Press(0, Layer("border"))
	assert.True(t, errors.Is(err, ErrUnknownLayer))

	_, err = s.Ended(99)
	assert.True(t, errors.Is(err, ErrUnknownTile))

	assert.Empty(t, s.Selection())
}

func TestRetireMatches(t *testing.T) {
	s, _ := newTestSession(t, true)

	press(t, s, 0, LayerTile)
	out := press(t, s, 2, LayerTile)

	fb, ok := feedbackIn(out)
	require.True(t, ok)
	assert.Equal(t, 1, fb.MatchedPairs)
	assert.False(t, fb.Solved)
	assert.Equal(t, 1, s.MatchedPairs())

	for _, p := range []int{0, 2} {
		tile, _ := s.Tile(p)
		assert.False(t, tile.Active)
		assert.Equal(t, inactiveFilter, tile.Filter)
	}

	s.Reset(1)

	assert.Empty(t, press(t, s, 0, LayerTile), "retired tiles ignore selection")
	assert.Empty(t, press(t, s, 0, LayerControl), "retired tiles ignore their control")

	press(t, s, 1, LayerTile)
	out = press(t, s, 3, LayerTile)

	fb, ok = feedbackIn(out)
	require.True(t, ok)
	assert.True(t, fb.Solved)
	assert.True(t, s.Solved())
	assert.True(t, s.Board().Solved)
}

func TestMismatchDoesNotRetire(t *testing.T) {
	s, _ := newTestSession(t, true)

	press(t, s, 0, LayerTile)
	press(t, s, 1, LayerTile)

	assert.Equal(t, 0, s.MatchedPairs())
	tile, _ := s.Tile(0)
	assert.True(t, tile.Active)
}

func TestCloseCancelsPendingReset(t *testing.T) {
	s, f := newTestSession(t, false)

	press(t, s, 0, LayerTile)
	press(t, s, 1, LayerTile)

	s.Close()
	assert.Equal(t, []uint64{1}, f.cancelled)
	assert.Empty(t, s.Reset(1))
}

func TestSessionWithoutScheduler(t *testing.T) {
	s := NewSession(SessionConfig{Level: 1, Round: []string{"A/1.mp3", "A/2.mp3"}})

	out, err := s.Press(0, LayerTile)
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = s.Press(1, LayerTile)
	require.NoError(t, err)

	_, ok := feedbackIn(out)
	require.True(t, ok)
	assert.Equal(t, uint64(1), s.PendingReset())
	assert.NotEmpty(t, s.Reset(1))

	tile, _ := s.Tile(0)
	assert.Equal(t, "Icons/1.jpeg", tile.Icon)
}
