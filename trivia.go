// Trivia transport
//
// Each room lives at /trivia/:room and talks over /trivia/:room/ws.
//
// Clients send:
//   {"type":"join","name":"Alice"}
//   {"type":"submit","answer":"Frank Capra","round":3}
//
// and receive the tagged messages defined in games/trivia, plus
// {"type":"error","message":...} for rejected input. Closing the socket
// is the disconnect event.

package main

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Seednode/trivia/games/trivia"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	triviaPath = "/trivia"

	maxMessageSize  = 4096
	maxNameLength   = 32
	maxAnswerLength = 256
	sendBuffer      = 16

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var (
	errMalformed     = errors.New("malformed message")
	errUnknownType   = errors.New("unknown message type")
	errInvalidName   = errors.New("name must be 1-32 printable characters")
	errAnswerTooLong = errors.New("answer is too long")
	errMissingRound  = errors.New("answer must name the round it is for")
	errNotJoined     = errors.New("join the room before answering")
	errAlreadyJoined = errors.New("already joined this room")
)

// ClientMessage is anything a client may send.
type ClientMessage struct {
	Type   string `json:"type"`             // "join", "submit"
	Name   string `json:"name,omitempty"`   // join
	Answer string `json:"answer,omitempty"` // submit
	Round  uint64 `json:"round,omitempty"`  // submit, from newQuestion
}

// ErrorMessage is sent only to the client whose input was rejected.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// ScoresResponse is served from /trivia/:room/scores.
type ScoresResponse struct {
	Room   string         `json:"room"`
	Scores []trivia.Score `json:"scores"`
}

func validRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

func parseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage

	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, errMalformed
	}

	switch msg.Type {
	case "join":
		msg.Name = strings.TrimSpace(msg.Name)

		n := utf8.RuneCountInString(msg.Name)
		if n == 0 || n > maxNameLength || !utf8.ValidString(msg.Name) {
			return ClientMessage{}, errInvalidName
		}
		for _, r := range msg.Name {
			if !unicode.IsPrint(r) {
				return ClientMessage{}, errInvalidName
			}
		}
	case "submit":
		if len(msg.Answer) > maxAnswerLength {
			return ClientMessage{}, errAnswerTooLong
		}
		if msg.Round == 0 {
			return ClientMessage{}, errMissingRound
		}
	default:
		return ClientMessage{}, errUnknownType
	}

	return msg, nil
}

type Client struct {
	id     string
	room   string
	conn   *websocket.Conn
	send   chan []byte
	joined bool
}

// Hub tracks live connections by id and implements trivia.Publisher.
type Hub struct {
	cfg     *Config
	mu      sync.Mutex
	clients map[string]*Client
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.id] = c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		close(c.send)
	}
}

// enqueueLocked drops clients that cannot keep up.
func (h *Hub) enqueueLocked(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		logf(h.cfg, "GAMES: Dropping slow client %s in %s", c.id, c.room)
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) Publish(roomID string, recipients []string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		logf(h.cfg, "ERROR: Encoding message for %s: %v", roomID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range recipients {
		if c, ok := h.clients[id]; ok {
			h.enqueueLocked(c, data)
		}
	}
}

func (h *Hub) sendError(c *Client, err error) {
	data, _ := json.Marshal(ErrorMessage{Type: "error", Message: err.Error()})

	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.id]; ok && cur == c {
		h.enqueueLocked(c, data)
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

type triviaGame struct {
	registry *trivia.Registry
	hub      *Hub
}

func newTriviaGame(cfg *Config) (*triviaGame, error) {
	bank := trivia.DefaultBank()

	if cfg.questions != "" {
		var err error

		bank, err = trivia.LoadBankFile(cfg.questions)
		if err != nil {
			return nil, err
		}
	}

	logf(cfg, "START: Loaded %d questions", bank.Len())

	hub := newHub(cfg)

	reg := trivia.NewRegistry(trivia.Options{
		Bank:           bank,
		Publisher:      hub,
		RoundTimeout:   cfg.roundTimeout,
		ShuffleOptions: cfg.shuffle,
		Logf: func(format string, args ...any) {
			logf(cfg, format, args...)
		},
	})

	return &triviaGame{registry: reg, hub: hub}, nil
}

func checkOrigin(cfg *Config) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(cfg.corsOrigins) == 0 {
			return true
		}

		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}

		return slices.Contains(cfg.corsOrigins, "*") || slices.Contains(cfg.corsOrigins, origin)
	}
}

func serveWS(cfg *Config, game *triviaGame) httprouter.Handle {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(cfg),
	}

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("room")
		if !validRoomID(roomID) {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			room: roomID,
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}

		game.hub.register(client)

		logf(cfg, "SERVE: Connection %s to %s from %s", client.id, roomID, realIP(r))

		go client.writePump()
		client.readPump(cfg, game)
	}
}

func (c *Client) readPump(cfg *Config, game *triviaGame) {
	defer func() {
		if c.joined {
			game.registry.Disconnect(c.id)
		}
		game.hub.unregister(c)
		_ = c.conn.Close()

		logf(cfg, "SERVE: Connection %s closed", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := parseClientMessage(data)
		if err != nil {
			game.hub.sendError(c, err)
			continue
		}

		switch msg.Type {
		case "join":
			if c.joined {
				game.hub.sendError(c, errAlreadyJoined)
				continue
			}

			c.joined = true
			game.registry.Join(c.room, c.id, msg.Name)
		case "submit":
			if !c.joined {
				game.hub.sendError(c, errNotJoined)
				continue
			}

			game.registry.SubmitAnswer(c.room, c.id, msg.Answer, msg.Round)
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

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// qrHandler renders a PNG QR code pointing at the room page.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validRoomID(ps.ByName("room")) {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		scheme := cfg.scheme()
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		target := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func serveScores(cfg *Config, game *triviaGame, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("room")
		if !validRoomID(roomID) {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		scores, ok := game.registry.Scores(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		if err := json.NewEncoder(w).Encode(ScoresResponse{Room: roomID, Scores: scores}); err != nil {
			errs <- err
		}
	}
}

func serveRoomPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validRoomID(ps.ByName("room")) {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}

		data, err := assets.ReadFile("assets/trivia/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "page unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// newRoomID generates a random 8-character room id not currently in use.
func newRoomID(reg *trivia.Registry) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	const limit = byte(256 - (256 % len(letters)))

	for {
		out := make([]byte, 0, 8)
		buf := make([]byte, 16)

		for len(out) < cap(out) {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}

			for _, b := range buf {
				if b < limit && len(out) < cap(out) {
					out = append(out, letters[int(b)%len(letters)])
				}
			}
		}

		if id := string(out); !reg.Exists(id) {
			return id
		}
	}
}

func redirectNewRoom(cfg *Config, path string, game *triviaGame) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := newRoomID(game.registry)
		logf(cfg, "GAMES: Redirecting %s to new room %s", realIP(r), roomID)
		http.Redirect(w, r, cfg.prefix+path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

// registerTriviaGame sets up:
//   - $path               → redirect to a new random room
//   - $path/:room         → HTML client
//   - $path/:room/ws      → websocket for that room
//   - $path/:room/qr      → PNG QR code for the room URL
//   - $path/:room/scores  → JSON scoreboard
func registerTriviaGame(cfg *Config, path string, mux *httprouter.Router, game *triviaGame, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, game))
	mux.GET(cfg.prefix+path+"/:room", serveRoomPage(cfg, errs))
	mux.GET(cfg.prefix+path+"/:room/ws", serveWS(cfg, game))
	mux.GET(cfg.prefix+path+"/:room/qr", qrHandler(cfg))
	mux.GET(cfg.prefix+path+"/:room/scores", serveScores(cfg, game, errs))
}
