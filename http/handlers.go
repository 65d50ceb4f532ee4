package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"agenci/game"
	"agenci/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type Handlers struct {
	lobby        *game.Lobby
	engine       *game.Engine
	wsManager    *ws.Manager
	lobbyManager *ws.LobbyManager
	publicURL    string
	upgrader     websocket.Upgrader
}

func NewHandlers(lobby *game.Lobby, engine *game.Engine, wsManager *ws.Manager, lobbyManager *ws.LobbyManager, opts Options) *Handlers {
	return &Handlers{
		lobby:        lobby,
		engine:       engine,
		wsManager:    wsManager,
		lobbyManager: lobbyManager,
		publicURL:    strings.TrimSuffix(opts.PublicURL, "/"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(opts.AllowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
			return true
		}
		return originAllowed(allowed, origin)
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello, chuju!"))
}

// Room handlers

func (h *Handlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	room, _, err := h.lobby.CreateRoom(r.Context())
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	h.pushRoomList(r.Context())
	writeJSON(w, http.StatusCreated, room)
}

func (h *Handlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.lobby.ListRooms(r.Context())
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	room, err := h.lobby.GetRoom(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) GetFields(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	viewerID, ok := queryID(w, r, "playerId")
	if !ok {
		return
	}
	fields, err := h.engine.GetBoard(r.Context(), roomID, viewerID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (h *Handlers) GetPlayers(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	if _, err := h.lobby.GetRoom(r.Context(), roomID); err != nil {
		writeGameError(w, r, err)
		return
	}
	players, err := h.engine.GetPlayers(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	events, err := h.engine.ListEvents(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type joinRequest struct {
	Username string `json:"username" validate:"required_without=PlayerID,max=256"`
	Team     string `json:"team" validate:"omitempty,oneof=red blue"`
	Role     string `json:"role" validate:"omitempty,oneof=shower guesser"`
	PlayerID int64  `json:"playerId" validate:"omitempty,gt=0"`
}

func (h *Handlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	var req joinRequest
	if !bindJSON(w, r, &req) {
		return
	}

	result, ev, err := h.engine.JoinRoom(r.Context(), game.JoinRequest{
		RoomID:   roomID,
		Username: req.Username,
		Team:     req.Team,
		Role:     req.Role,
		PlayerID: req.PlayerID,
	})
	if err != nil {
		writeGameError(w, r, err)
		return
	}

	h.wsManager.BroadcastEvent(ev)

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *Handlers) AdvanceStage(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	room, ev, err := h.engine.AdvanceStage(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	if ev != nil {
		h.wsManager.BroadcastEvent(ev)
		h.pushRoomList(r.Context())
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *Handlers) ToggleTurn(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	room, ev, err := h.engine.ToggleCurrentTeam(r.Context(), roomID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	h.wsManager.BroadcastEvent(ev)
	writeJSON(w, http.StatusOK, room)
}

// RoomQR renders the room's join link as a PNG.
func (h *Handlers) RoomQR(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "roomId")
	if !ok {
		return
	}
	if _, err := h.lobby.GetRoom(r.Context(), roomID); err != nil {
		writeGameError(w, r, err)
		return
	}

	png, err := qrcode.Encode(h.joinURL(r, roomID), qrcode.Medium, qrSize)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("qr generation failed")
		writeError(w, http.StatusInternalServerError, "qr generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// joinURL prefers the configured public url; otherwise it is derived from the
// request, respecting TLS and X-Forwarded-Proto.
func (h *Handlers) joinURL(r *http.Request, roomID int64) string {
	base := h.publicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/rooms/" + strconv.FormatInt(roomID, 10)
}

// Field handlers

func (h *Handlers) GetField(w http.ResponseWriter, r *http.Request) {
	fieldID, ok := pathID(w, r, "fieldId")
	if !ok {
		return
	}
	viewerID, ok := queryID(w, r, "playerId")
	if !ok {
		return
	}
	field, err := h.engine.GetField(r.Context(), fieldID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}

	var viewer *game.Player
	if viewerID != 0 {
		if viewer, err = h.engine.GetPlayer(r.Context(), viewerID); err != nil {
			writeGameError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, game.MaskBoard([]*game.Field{field}, viewer)[0])
}

type revealRequest struct {
	PlayerID int64 `json:"playerId" validate:"required,gt=0"`
}

func (h *Handlers) RevealField(w http.ResponseWriter, r *http.Request) {
	fieldID, ok := pathID(w, r, "fieldId")
	if !ok {
		return
	}
	var req revealRequest
	if !bindJSON(w, r, &req) {
		return
	}

	result, ev, err := h.engine.RevealField(r.Context(), req.PlayerID, fieldID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	h.wsManager.BroadcastEvent(ev)
	writeJSON(w, http.StatusOK, result)
}

// Player handlers

func (h *Handlers) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathID(w, r, "playerId")
	if !ok {
		return
	}
	player, err := h.engine.GetPlayer(r.Context(), playerID)
	if err != nil {
		writeGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

// WebSocket handlers

func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	h.wsManager.HandleConnection(conn)
}

func (h *Handlers) HandleLobbyWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("lobby websocket upgrade failed")
		return
	}
	h.lobbyManager.HandleConnection(conn)
}

// pushRoomList sends the current room list to lobby sockets.
func (h *Handlers) pushRoomList(ctx context.Context) {
	rooms, err := h.lobby.ListRooms(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("cannot refresh lobby room list")
		return
	}
	h.lobbyManager.BroadcastUpdate(rooms)
}
