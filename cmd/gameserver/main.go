// Package main implements the Vector Racer match server.
//
// Architecture Overview:
// - WebSocket for real-time bidirectional communication with clients
// - Each match runs its own simulation loop at 60Hz
// - State updates are broadcast to participants at 10Hz
// - Anti-cheat heuristics validate movement server-side
//
// Connection Flow:
// 1. Client connects via WebSocket to /ws endpoint
// 2. Server assigns a session id and sends a welcome message
// 3. Client sets display metadata and joins the matchmaking queue
// 4. A startMatch request groups queued players into a live match
// 5. Client sends input messages, server broadcasts state messages
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vracer/server/config"
	"github.com/vracer/server/internal/game"
	"github.com/vracer/server/internal/matchmaker"
	"github.com/vracer/server/internal/network"
	"github.com/vracer/server/internal/session"
	"github.com/vracer/server/internal/store"
)

// GameServer is the main server instance. It owns the session
// registry, the matchmaking queue, the match registry, and the
// persistence store, and routes decoded messages to them.
type GameServer struct {
	config   *config.ServerConfig
	sessions *session.Registry
	queue    *matchmaker.Queue
	matches  *matchmaker.Registry
	store    *store.Store
	upgrader websocket.Upgrader
}

// ClientConnection represents a single connected client.
// Each client has its own goroutines for reading and writing.
type ClientConnection struct {
	ws       *websocket.Conn
	server   *GameServer
	sid      string
	sendChan chan []byte
	done     chan struct{}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadConfig()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store at %s: %v", cfg.DBPath, err)
	}
	defer db.Close()

	server := NewGameServer(cfg, db)

	log.Printf("=================================")
	log.Printf("  Vector Racer Match Server")
	log.Printf("=================================")
	log.Printf("  Host: %s", cfg.Host)
	log.Printf("  Port: %d", cfg.Port)
	log.Printf("  Tick Rate: %d Hz", config.TickRate)
	log.Printf("  Broadcast Rate: %d Hz", config.BroadcastRate)
	log.Printf("  DB: %s", cfg.DBPath)
	log.Printf("=================================")

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// loadConfig reads configuration from environment variables.
// Falls back to default values if environment variables are not set.
func loadConfig() *config.ServerConfig {
	cfg := config.DefaultServerConfig()

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.DBPath = path
	}

	// CORS can be disabled for production behind a reverse proxy
	if cors := os.Getenv("ENABLE_CORS"); cors == "false" {
		cfg.EnableCORS = false
	}

	return cfg
}

// NewGameServer creates and initializes a new game server instance.
func NewGameServer(cfg *config.ServerConfig, db *store.Store) *GameServer {
	return &GameServer{
		config:   cfg,
		sessions: session.NewRegistry(),
		queue:    matchmaker.NewQueue(),
		matches:  matchmaker.NewRegistry(),
		store:    db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.EnableCORS
			},
		},
	}
}

// Start registers the HTTP endpoints and blocks serving them.
func (s *GameServer) Start() error {
	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/health", s.handleHealth)
	http.HandleFunc("/stats", s.handleStats)
	http.HandleFunc("/admin/players", s.handleAdminPlayers)
	http.HandleFunc("/admin/replays", s.handleAdminReplays)
	http.HandleFunc("/admin/replay/", s.handleAdminReplay)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	log.Printf("Server listening on %s", addr)

	return http.ListenAndServe(addr, nil)
}

// SendTo encodes a tagged payload and delivers it to one session.
// Disconnected sessions are skipped silently: disconnection is
// expected and handled at session teardown. Implements
// game.Broadcaster.
func (s *GameServer) SendTo(sessionID, msgType string, payload any) {
	conn, ok := s.sessions.Conn(sessionID)
	if !ok {
		return
	}
	data, err := network.Encode(msgType, payload)
	if err != nil {
		log.Printf("Encode %s failed: %v", msgType, err)
		return
	}
	conn.Send(data)
}

// handleHealth responds to health check requests.
func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleStats returns current server statistics as JSON.
func (s *GameServer) handleStats(w http.ResponseWriter, r *http.Request) {
	matches, players := s.matches.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"sessions":%d,"matches":%d,"players":%d,"queue":%d}`,
		s.sessions.Count(), matches, players, s.queue.Len())
}

// handleAdminPlayers lists top players by rating.
func (s *GameServer) handleAdminPlayers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.TopPlayers(500)
	if err != nil {
		http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

// handleAdminReplays lists recent replay records.
func (s *GameServer) handleAdminReplays(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.RecentReplays(50)
	if err != nil {
		http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

// handleAdminReplay returns one replay body by id.
func (s *GameServer) handleAdminReplay(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/replay/")
	data, err := s.store.ReplayData(id)
	if err == store.ErrNotFound {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"query failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON write failed: %v", err)
	}
}

// handleWebSocket upgrades HTTP connections to WebSocket and manages
// the client lifecycle. Each client gets a fresh session id, default
// metadata, and two goroutines: one for reading, one for writing.
func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sid := "s_" + uuid.NewString()[:8]

	conn := &ClientConnection{
		ws:       ws,
		server:   s,
		sid:      sid,
		sendChan: make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	s.sessions.Register(sid, conn, session.Meta{
		Name:  "Player_" + sid[2:6],
		Color: fmt.Sprintf("#%06x", rand.Intn(0x1000000)),
	})

	log.Printf("New connection %s from %s", sid, ws.RemoteAddr())

	go conn.writePump()
	go conn.readPump()

	s.SendTo(sid, network.MsgWelcome, network.WelcomePayload{
		SID:       sid,
		QueueSize: s.queue.Len(),
	})
}

// Send queues data to be sent to the client. Non-blocking: drops the
// message if the buffer is full so a slow client cannot stall a
// broadcast.
func (c *ClientConnection) Send(data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("connection closed")
	default:
		// Buffer full - the client will catch up on the next update.
		return nil
	}
}

// Close gracefully shuts down the connection.
// Safe to call multiple times.
func (c *ClientConnection) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	return c.ws.Close()
}

// writePump handles sending messages to the client.
// Also sends periodic pings to detect dead connections.
func (c *ClientConnection) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.cleanup()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles receiving messages from the client.
// Messages are dispatched to the appropriate handlers.
func (c *ClientConnection) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Read error from %s: %v", c.sid, err)
			}
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage decodes the envelope and dispatches on the message
// kind. Malformed messages are logged and dropped; unknown kinds are
// a no-op. The connection stays open either way.
func (c *ClientConnection) handleMessage(data []byte) {
	env, err := network.DecodeEnvelope(data)
	if err != nil {
		log.Printf("Message decode failed from %s: %v", c.sid, err)
		return
	}

	switch env.T {
	case network.MsgSetMeta:
		c.handleSetMeta(env)

	case network.MsgJoinQueue:
		c.handleJoinQueue()

	case network.MsgLeaveQueue:
		c.handleLeaveQueue()

	case network.MsgStartMatch:
		c.handleStartMatch(env)

	case network.MsgInput:
		c.handleInput(env)

	case network.MsgPing:
		c.server.SendTo(c.sid, network.MsgPong, network.PongPayload{TS: time.Now().UnixMilli()})
	}
}

// handleSetMeta updates the session's display metadata and refreshes
// the persisted profile. Profile persistence is best-effort.
func (c *ClientConnection) handleSetMeta(env network.Envelope) {
	msg, err := network.DecodePayload[network.SetMetaPayload](env)
	if err != nil {
		log.Printf("Invalid setMeta from %s: %v", c.sid, err)
		return
	}

	name := strings.TrimSpace(msg.Meta.Name)
	if len(name) > 20 {
		name = name[:20]
	}

	c.server.sessions.UpdateMeta(c.sid, session.Meta{Name: name, Color: msg.Meta.Color})

	meta, _ := c.server.sessions.Meta(c.sid)
	if err := c.server.store.UpsertPlayer(c.sid, meta.Name, meta.Color); err != nil {
		log.Printf("Profile save failed for %s: %v", c.sid, err)
	}

	c.server.SendTo(c.sid, network.MsgMetaSet, network.MetaSetPayload{OK: true})
}

// handleJoinQueue places the session in the matchmaking queue tagged
// with its persisted rating.
func (c *ClientConnection) handleJoinQueue() {
	rating := c.server.store.PlayerRating(c.sid)
	pos := c.server.queue.Enqueue(c.sid, rating)
	c.server.SendTo(c.sid, network.MsgQueued, network.QueuedPayload{Pos: pos})
}

// handleLeaveQueue removes the session from the waiting list.
func (c *ClientConnection) handleLeaveQueue() {
	c.server.queue.Dequeue(c.sid)
	c.server.SendTo(c.sid, network.MsgLeftQueue, struct{}{})
}

// handleStartMatch groups queued players into a new match. If the
// queue cannot fill the request the sender gets an explicit error
// payload and the queue is left untouched.
func (c *ClientConnection) handleStartMatch(env network.Envelope) {
	msg, err := network.DecodePayload[network.StartMatchPayload](env)
	if err != nil {
		log.Printf("Invalid startMatch from %s: %v", c.sid, err)
		return
	}

	count := msg.Count
	if count < config.MinMatchPlayers {
		count = config.MinMatchPlayers
	}

	entries, err := c.server.queue.FormMatch(count)
	if err != nil {
		c.server.SendTo(c.sid, network.MsgError, network.ErrorPayload{Msg: "not enough players in queue"})
		return
	}

	participants := make([]game.Participant, 0, len(entries))
	for _, e := range entries {
		meta, _ := c.server.sessions.Meta(e.SessionID)
		participants = append(participants, game.Participant{
			SessionID: e.SessionID,
			Name:      meta.Name,
			Color:     meta.Color,
		})
	}

	matchID := "match_" + uuid.NewString()[:8]
	m := game.NewMatch(matchID, participants, c.server, c.server.store, c.server.store)
	c.server.matches.Add(m)
	m.Start()

	for _, p := range participants {
		c.server.SendTo(p.SessionID, network.MsgMatchStarted, network.MatchStartedPayload{MatchID: matchID})
	}
}

// handleInput forwards one control input to its match. Inputs for
// unknown matches are dropped.
func (c *ClientConnection) handleInput(env network.Envelope) {
	msg, err := network.DecodePayload[network.InputPayload](env)
	if err != nil {
		return
	}

	m := c.server.matches.Get(msg.MatchID)
	if m == nil {
		return
	}

	m.ApplyInput(c.sid, game.RawInput{
		Throttle: msg.Throttle,
		Brake:    msg.Brake,
		Steer:    msg.Steer,
		Seq:      msg.Seq,
	})
}

// cleanup tears the session down: registry removal, queue removal,
// and match membership removal. Called when the connection closes.
func (c *ClientConnection) cleanup() {
	c.server.sessions.Unregister(c.sid)
	c.server.queue.Dequeue(c.sid)
	c.server.matches.RemoveSession(c.sid)

	c.Close()
	log.Printf("Connection closed: %s", c.sid)
}
