package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/agileassist/server/adapters/stt"
	"github.com/agileassist/server/domain/entities"
	"github.com/agileassist/server/domain/repositories"
	"github.com/agileassist/server/internal/capture"
	"github.com/agileassist/server/internal/voice"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks

	sendBuffer = 256
)

// Settings tune every voice session served by the hub
type Settings struct {
	DefaultLanguage string
	AutoPlay        bool
	SilenceTimeout  time.Duration
	SessionTTL      time.Duration
	AllowedOrigins  []string
}

// Dependencies are shared by all voice sessions. SpeechToText is nil when
// server-side recognition is disabled.
type Dependencies struct {
	Answers      voice.AnswerClient
	Speech       voice.SpeechClient
	Health       voice.HealthChecker
	SpeechToText repositories.SpeechToText
}

// Hub maintains the set of connected voice sessions
type Hub struct {
	// Registered clients by session ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	deps     Dependencies
	settings Settings
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(deps Dependencies, settings Settings, logger *zap.Logger) *Hub {
	if settings.DefaultLanguage == "" {
		settings.DefaultLanguage = voice.DefaultLanguage
	}

	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		deps:       deps,
		settings:   settings,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

// Run starts the hub's main loop; it closes every client when ctx is done
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			previous := h.clients[client.sessionID]
			h.clients[client.sessionID] = client
			h.mu.Unlock()

			if previous != nil {
				h.logger.Info("Replacing connection of session", zap.String("sessionID", client.sessionID))
				previous.shutdown()
			}
			h.logger.Info("Client registered", zap.String("sessionID", client.sessionID))

		case client := <-h.unregister:
			h.mu.Lock()
			if h.clients[client.sessionID] == client {
				delete(h.clients, client.sessionID)
			}
			h.mu.Unlock()
			client.shutdown()
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sessionID))

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				client.shutdown()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// Count returns the number of connected sessions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Session returns a snapshot of a connected session
func (h *Hub) Session(id string) (entities.VoiceSession, bool) {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return entities.VoiceSession{}, false
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	return *client.session, true
}

// ExpireIdle disconnects sessions idle for longer than idle, or past their
// expiry, and returns their IDs
func (h *Hub) ExpireIdle(idle time.Duration) []string {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var expired []string
	for _, client := range clients {
		client.mu.Lock()
		stale := client.session.IsExpired() || (idle > 0 && client.session.IdleFor() > idle)
		if stale {
			client.session.Expire()
		}
		client.mu.Unlock()

		if stale {
			expired = append(expired, client.sessionID)
			client.shutdown()
		}
	}
	return expired
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.settings.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.settings.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Closed when the client is shut down.
	done      chan struct{}
	closeOnce sync.Once

	sessionID string
	language  string
	logger    *zap.Logger
	validator *MessageValidator

	ctx    context.Context
	cancel context.CancelFunc

	// guards session and voice
	mu      sync.Mutex
	session *entities.VoiceSession
	voice   *voiceSession
}

// HandleWebSocket upgrades an authenticated request to a voice session
func HandleWebSocket(hub *Hub, c echo.Context, sessionID, language string, logger *zap.Logger) error {
	conn, err := hub.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	if language == "" {
		language = hub.settings.DefaultLanguage
	}

	client := newClient(hub, conn, sessionID, language, logger)

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID, language string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, sendBuffer),
		done:      make(chan struct{}),
		sessionID: sessionID,
		language:  language,
		logger:    logger.With(zap.String("sessionID", sessionID)),
		validator: NewMessageValidator(),
		ctx:       ctx,
		cancel:    cancel,
		session:   entities.NewVoiceSessionWithID(sessionID, language, hub.settings.SessionTTL),
	}
}

// shutdown stops the write pump and closes the connection; the read pump
// then unregisters and tears down the voice session
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump pumps messages from the websocket connection to the voice session.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.shutdown()
		c.closeVoice()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.touch()

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the session to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// sendJSON queues a message; it is dropped when the client is gone or too slow
func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	case <-c.done:
	default:
		c.logger.Warn("Send buffer full, dropping message")
	}
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(CreateErrorMessage(code, message, ""))
}

func (c *Client) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Touch()
}

func (c *Client) currentVoice() *voiceSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voice
}

func (c *Client) closeVoice() {
	c.mu.Lock()
	vs := c.voice
	c.voice = nil
	c.session.Terminate()
	c.mu.Unlock()

	if vs != nil {
		vs.close()
	}
}

// processMessage processes incoming messages from the browser
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError(ErrorCodeInvalidMessage, err.Error())
		return
	}

	switch msg := parsed.(type) {
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
		return
	case *HelloMessage:
		c.handleHello(msg)
		return
	}

	vs := c.currentVoice()
	if vs == nil {
		c.sendError(ErrorCodeHelloRequired, "send hello before other messages")
		return
	}

	switch msg := parsed.(type) {
	case *VoicesMessage:
		vs.engine.SetVoices(msg.Voices)
		if err := vs.speaker.VoicesChanged(); err != nil {
			c.logger.Warn("Deferred speech failed", zap.Error(err))
		}

	case *RecognitionResultMessage:
		if vs.remote == nil || !vs.remote.Push(capture.Segment{Text: msg.Text, Final: msg.Final}) {
			c.logger.Debug("Recognition result outside a session")
		}

	case *RecognitionErrorMessage:
		if vs.remote == nil || !vs.remote.Push(capture.Segment{Error: recognitionErrorKind(msg.Error)}) {
			c.logger.Debug("Recognition error outside a session", zap.String("error", msg.Error))
		}

	case *PromptMessage:
		c.handleStartError(vs.controller.SubmitAsync(c.ctx, msg.Text))

	case *AudioConfigMessage:
		if !vs.configureAudio(msg) {
			c.sendError(ErrorCodeNoRecognizer, "server-side recognition is not enabled for this session")
		}

	case *ControlMessage:
		switch msg.Type {
		case MessageTypeMicStart:
			c.handleStartError(vs.controller.StartListening(c.ctx))
		case MessageTypeMicStop:
			if err := vs.controller.StopListening(); err != nil {
				c.logger.Warn("Failed to stop listening", zap.Error(err))
			}
		case MessageTypeRecognitionEnd:
			if vs.remote != nil {
				vs.remote.End()
			}
		case MessageTypeReset:
			vs.controller.Reset()
		}
	}
}

func (c *Client) handleHello(msg *HelloMessage) {
	lang := msg.Language
	if lang == "" {
		lang = c.language
	}

	c.mu.Lock()
	if c.voice != nil {
		vs := c.voice
		c.mu.Unlock()
		vs.setLanguage(lang)
		return
	}
	vs := c.hub.newVoiceSession(c, msg, lang)
	c.voice = vs
	c.session.Language = lang
	c.mu.Unlock()

	c.logger.Info("Voice session started",
		zap.String("lang", lang),
		zap.Bool("browserRecognition", msg.Capabilities.Recognition),
		zap.Bool("serverRecognition", vs.server != nil),
		zap.Bool("browserSynthesis", msg.Capabilities.Synthesis))

	vs.start(c.ctx, c.hub.deps.Health, c.sendJSON)
}

// handleStartError reports refusals that the controller did not already
// turn into a notice
func (c *Client) handleStartError(err error) {
	switch {
	case err == nil, errors.Is(err, voice.ErrEmptyInput):
	case errors.Is(err, voice.ErrTurnInProgress):
		c.sendError(ErrorCodeTurnInProgress, err.Error())
	case errors.Is(err, voice.ErrNotConfigured):
		c.sendError(ErrorCodeNotConfigured, err.Error())
	case errors.Is(err, capture.ErrUnavailable), errors.Is(err, capture.ErrAlreadyActive):
		// already raised as a notice
	default:
		c.sendError(ErrorCodeMicUnavailable, err.Error())
	}
}

// processBinaryAudioChunk feeds audio to server-side recognition
func (c *Client) processBinaryAudioChunk(data []byte) {
	vs := c.currentVoice()
	if vs == nil {
		c.sendError(ErrorCodeHelloRequired, "send hello before audio")
		return
	}
	if vs.server == nil {
		c.logger.Debug("Received binary audio chunk but server recognition is off",
			zap.Int("size", len(data)))
		if !vs.audioRejected {
			vs.audioRejected = true
			c.sendError(ErrorCodeNoRecognizer, "server-side recognition is not enabled for this session")
		}
		return
	}

	if err := vs.server.Feed(data); err != nil {
		if errors.Is(err, stt.ErrNotListening) {
			c.logger.Debug("Dropping audio outside a recognition session", zap.Int("size", len(data)))
			return
		}
		c.logger.Error("Failed to stream audio data", zap.Error(err))
	}
}
