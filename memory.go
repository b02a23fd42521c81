// Audiomatch memory game
//
// Every tile on the board is bound to a short audio clip. Clips come in
// groups of four; the player listens, picks two tiles, and is told whether
// they belong to the same group.
//
// Features:
// - GET /path?level=N creates a new game with a freshly shuffled round
//   and redirects to /path/:gameid
// - WebSockets per game ID: /path/:gameid/ws
// - One goroutine per game owns the session; clicks, clip ends and reset
//   timers are handled there one at a time
// - Presses name the layer they hit, so the play/pause control never
//   toggles selection
// - A newer pair cancels the reset still pending from the previous one
// - Games auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current game, backed by go-qrcode

package main

import (
	crand "crypto/rand"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 32
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "press", "ended"
	Position *int   `json:"position,omitempty"` // press / ended
	Layer    Layer  `json:"layer,omitempty"`    // press
}

type Client struct {
	conn *websocket.Conn
	send chan any
	addr string
}

type clientInput struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id      string
	session *Session
	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	inputs   chan clientInput
	resets   chan uint64

	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once

	mu         sync.RWMutex
	lastActive time.Time
}

func newHub(gameID string, sc SessionConfig) *Hub {
	now := time.Now()

	h := &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		inputs:     make(chan clientInput),
		resets:     make(chan uint64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		lastActive: now,
	}

	sc.Schedule = h.scheduleReset
	h.session = NewSession(sc)

	return h
}

// scheduleReset delivers gen to the hub's loop after d, unless the hub has
// been closed first.
func (h *Hub) scheduleReset(gen uint64, d time.Duration) func() {
	t := time.AfterFunc(d, func() {
		select {
		case h.resets <- gen:
		case <-h.quit:
		}
	})

	return func() { t.Stop() }
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) run(cfg *Config) {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.touch()
			h.clients[c] = true
			h.sendTo(c, h.session.Board())

			logf(cfg, "GAMES: %s joined %s", c.addr, h.id)

		case c := <-h.unreg:
			h.touch()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case in := <-h.inputs:
			h.touch()
			h.handleInput(cfg, in)

		case gen := <-h.resets:
			h.broadcast(h.session.Reset(gen)...)

		case <-h.quit:
			h.session.Close()
			for c := range h.clients {
				close(c.send)
				_ = c.conn.Close()
				delete(h.clients, c)
			}
			return
		}
	}
}

func (h *Hub) handleInput(cfg *Config, in clientInput) {
	msg := in.msg

	if msg.Position == nil {
		return
	}

	var (
		out []any
		err error
	)

	switch msg.Type {
	case "press":
		out, err = h.session.Press(*msg.Position, msg.Layer)
	case "ended":
		out, err = h.session.Ended(*msg.Position)
	default:
		return
	}

	if err != nil {
		logf(cfg, "GAMES: Ignoring %s from %s in %s: %v", msg.Type, in.client.addr, h.id, err)
		return
	}

	for _, m := range out {
		if fb, ok := m.(FeedbackMessage); ok {
			logf(cfg, "GAMES: Pair %v is a %s in %s", fb.Positions, fb.Outcome, h.id)
			if fb.Solved {
				logf(cfg, "GAMES: Level %d solved in %s", h.session.Level(), h.id)
			}
		}
	}

	h.broadcast(out...)
}

func (h *Hub) broadcast(msgs ...any) {
	if len(msgs) == 0 {
		return
	}

	for client := range h.clients {
		for _, msg := range msgs {
			if !h.sendTo(client, msg) {
				break
			}
		}
	}
}

// sendTo queues msg for c, dropping the client if it has fallen behind.
func (h *Hub) sendTo(c *Client, msg any) bool {
	select {
	case c.send <- msg:
		return true
	default:
		delete(h.clients, c)
		close(c.send)
		return false
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.done:
	}
}

func (h *Hub) post(in clientInput) bool {
	select {
	case h.inputs <- in:
		return true
	case <-h.done:
		return false
	}
}

// closeAll disconnects all clients of this hub and stops its loop.
func (h *Hub) closeAll() {
	h.quitOnce.Do(func() { close(h.quit) })
	<-h.done
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated round.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	levels      *LevelTable
	rng         *rand.Rand
	idleTimeout time.Duration
}

func newRand() *rand.Rand {
	var seed [32]byte
	_, _ = crand.Read(seed[:])

	return rand.New(rand.NewChaCha8(seed))
}

func newGameManager(levels *LevelTable, idleTimeout time.Duration, done <-chan struct{}) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		levels:      levels,
		rng:         newRand(),
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop(done)
	}
	return gm
}

func (gm *GameManager) getHub(gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return gm.hubs[gameID]
}

// newGame shuffles a round for level, as seen from host, and starts a hub
// for it under a fresh game ID.
func (gm *GameManager) newGame(cfg *Config, level int, host string) (*Hub, error) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	round, err := gm.levels.NewRound(level, gm.rng)
	if err != nil {
		return nil, err
	}

	hub := newHub(gm.newGameIDLocked(), SessionConfig{
		Level:         level,
		Round:         round,
		Host:          host,
		Sources:       cfg.sourceResolver(),
		IconExt:       cfg.iconExt,
		ResetDelay:    cfg.resetDelay,
		RetireMatches: cfg.retireMatches,
	})
	gm.hubs[hub.id] = hub

	go hub.run(cfg)

	return hub, nil
}

// newGameIDLocked generates a crypto-random game ID that doesn't collide
// with existing games. gm.mu must be held.
func (gm *GameManager) newGameIDLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := crand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if _, exists := gm.hubs[id]; !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop(done <-chan struct{}) {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			gm.reap(time.Now().Add(-gm.idleTimeout))
		case <-done:
			return
		}
	}
}

func (gm *GameManager) reap(cutoff time.Time) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	for id, hub := range gm.hubs {
		if hub.idleSince().Before(cutoff) {
			delete(gm.hubs, id)
			go hub.closeAll()
		}
	}
}

// closeAll ends every game, for server shutdown.
func (gm *GameManager) closeAll() {
	gm.mu.Lock()
	hubs := make([]*Hub, 0, len(gm.hubs))
	for id, hub := range gm.hubs {
		hubs = append(hubs, hub)
		delete(gm.hubs, id)
	}
	gm.mu.Unlock()

	for _, hub := range hubs {
		hub.closeAll()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(gameID)
		if hub == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errorf("upgrade error: %v", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, sendBuffer),
			addr: realIP(r),
		}

		if !hub.join(client) {
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "press", "ended":
			if !h.post(clientInput{client: c, msg: msg}) {
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// forwardedScheme returns the scheme the client reached us on, honouring
// X-Forwarded-Proto only when it names http or https.
func forwardedScheme(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	switch proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto {
	case "http", "https":
		scheme = proto
	}

	return scheme
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		if gm.getHub(gameID) == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		// We are at /.../:gameid/qr; strip trailing "/qr" to get the game URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := forwardedScheme(r) + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func getIndexHandler(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")

		// Unknown or reaped game: start over on a new round.
		if gm.getHub(gameID) == nil {
			target := cfg.prefix + path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(gamePage(cfg, path, gameID)))
	}
}

// redirectNewGame handles GET /path by shuffling a new round for the level
// in the query string and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		level := ResolveLevel(r.URL.RawQuery)

		hub, err := gm.newGame(cfg, level, r.Host)
		if err != nil {
			errorf("GAMES: %v", err)

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(newPage(cfg, "Server Error", "Unable to start a new game. Please try again.")))
			return
		}

		logf(cfg, "GAMES: Created level %d game %s%s/%s for %s", level, cfg.prefix, path, hub.id, realIP(r))

		http.Redirect(w, r, cfg.prefix+path+"/"+hub.id, http.StatusTemporaryRedirect)
	}
}

// registerMemoryGame sets up routes so that:
//   - $path                  → redirects to a new random game (8-char ID)
//   - $path/:gameid          → HTML client
//   - $path/:gameid/ws       → WebSocket for that game
//   - $path/:gameid/qr       → PNG QR code for that game URL
func registerMemoryGame(cfg *Config, path string, mux *httprouter.Router, gm *GameManager) {
	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid", getIndexHandler(cfg, path, gm))

	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler(cfg, gm))
}
