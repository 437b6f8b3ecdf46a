// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/auth"
	"github.com/dilemma-gg/party/internal/broadcast"
	"github.com/dilemma-gg/party/internal/leaderboard"
	"github.com/dilemma-gg/party/internal/middleware"
	"github.com/dilemma-gg/party/internal/models"
)

// PartyWSHandler upgrades /party/ws/{lobby_id} to a websocket and runs the
// read/write pumps. Every inbound message passes the security gate before it
// reaches the registry or the tournament engine.
func (s *PartyServer) PartyWSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/party/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing lobby_id", http.StatusBadRequest)
			return
		}
		lobbyID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid lobby_id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"party"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.Log.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "party" {
			c.Close(BadSubprotocolError, "client must speak the party subprotocol")
			return
		}

		claims, err := s.wsAuthenticate(r)
		if err != nil {
			s.Log.Warnf("ws auth failed for lobby %s: %v", lobbyID, err)
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}

		lob, exists := s.Registry.GetLobby(lobbyID)
		if !exists {
			c.Close(InvalidLobbyIDError, "lobby does not exist")
			return
		}
		lob.Mu.Lock()
		isMember := lob.Participant(claims.PlayerID) != nil
		lob.Mu.Unlock()
		if !isMember {
			c.Close(websocket.StatusPolicyViolation, "join the lobby before connecting")
			return
		}

		sessionID := r.URL.Query().Get("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		if res := s.Validator.TrackPlayerSession(claims.PlayerID, sessionID); !res.Valid {
			c.Close(DuplicateSessionError, "another session is already active")
			return
		}
		defer s.Validator.RemovePlayerSession(claims.PlayerID)

		ctx, cancel := context.WithCancel(r.Context())
		conn := s.Hub.NewConn(lobbyID, claims.PlayerID, cancel)
		s.Hub.Register(conn)
		middleware.LogWSConnect(s.Log, remoteAddr, lobbyID, claims.PlayerID)

		s.Engine.HandleReconnect(lobbyID, claims.PlayerID)

		go writePump(ctx, c, conn, s.Log)
		readErr := s.readPump(ctx, c, conn, claims)

		s.Hub.Unregister(conn)
		middleware.LogWSDisconnect(s.Log, remoteAddr, lobbyID, claims.PlayerID, readErr)

		// A player already gone from the lobby at this point was removed
		// server-side (kicked); a voluntary leaver is still a member until
		// handleDeparture below.
		if lob, ok := s.Registry.GetLobby(lobbyID); ok {
			lob.Mu.Lock()
			member := lob.Participant(claims.PlayerID) != nil
			lob.Mu.Unlock()
			if !member {
				c.Close(KickedError, "removed from lobby by host")
				return
			}
		}
		s.handleDeparture(lobbyID, claims.PlayerID)
	}
}

// wsAuthenticate resolves identity from the auth_token cookie or a token
// query parameter, for clients that cannot set cookies on ws upgrade.
func (s *PartyServer) wsAuthenticate(r *http.Request) (auth.PlayerClaims, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return auth.AuthenticatePlayerToken(token)
}

// handleDeparture resolves what a closed connection means: during a running
// tournament the player is marked disconnected and may forfeit; otherwise the
// player leaves the lobby.
func (s *PartyServer) handleDeparture(lobbyID, playerID uuid.UUID) {
	ctx := context.Background()
	if t, ok := s.Engine.TournamentForLobby(lobbyID); ok && t.Status == models.TournamentInProgress {
		if err := s.Engine.HandleDisconnect(ctx, lobbyID, playerID); err != nil {
			s.Log.WithError(err).Warn("handling tournament disconnect")
		}
		return
	}
	if err := s.Registry.LeavePlayer(ctx, lobbyID, playerID); err != nil && err != models.ErrPlayerNotInLobby && err != models.ErrLobbyNotFound {
		s.Log.WithError(err).Warn("removing player on disconnect")
	}
}

// readPump reads inbound messages until the connection drops.
func (s *PartyServer) readPump(ctx context.Context, c *websocket.Conn, conn *broadcast.Conn, claims auth.PlayerClaims) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		typ, data, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}

		var msg models.PartyMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.WriteError("INVALID_MESSAGE_TYPE", "invalid JSON")
			continue
		}
		msg.LobbyID = conn.LobbyID
		msg.SenderID = claims.PlayerID

		if res := s.Gate.ValidateEnvelope(&msg); !res.Valid {
			conn.WriteError(string(res.Code), res.Reason)
			continue
		}
		if res := s.Gate.CheckRate(claims.PlayerID); !res.Valid {
			conn.WriteError(string(res.Code), res.Reason)
			continue
		}
		s.Validator.TouchSession(claims.PlayerID)
		s.dispatch(ctx, conn, claims, &msg)
	}
}

// dispatch routes one validated envelope to the matching operation.
func (s *PartyServer) dispatch(ctx context.Context, conn *broadcast.Conn, claims auth.PlayerClaims, msg *models.PartyMessage) {
	switch msg.Type {
	case "chat":
		s.handleChat(ctx, conn, claims, msg)

	case "chat_history":
		conn.Write(map[string]interface{}{
			"type":     "CHAT_HISTORY",
			"messages": s.Registry.ChatHistory(conn.LobbyID),
		})

	case "host_action":
		s.handleHostAction(ctx, conn, claims, msg)

	case "begin_match":
		id, err := uuid.Parse(stringField(msg.Payload, "match_id"))
		if err != nil {
			conn.WriteError("INVALID_MESSAGE_TYPE", "begin_match requires match_id")
			return
		}
		if err := s.Engine.BeginMatch(ctx, id); err != nil {
			conn.WriteError(err.Error(), "could not start match")
		}

	case "report_result":
		var res models.MatchResult
		if err := decodePayload(msg.Payload, &res); err != nil {
			conn.WriteError("INVALID_MESSAGE_TYPE", "malformed match result")
			return
		}
		if res.CompletedAt.IsZero() {
			res.CompletedAt = time.Now()
		}
		if _, err := s.Engine.AcceptMatchResult(ctx, conn.LobbyID, claims.PlayerID, &res); err != nil {
			conn.WriteError(err.Error(), "match result rejected")
		}

	case "standings":
		t, ok := s.Engine.TournamentForLobby(conn.LobbyID)
		if !ok {
			conn.WriteError(string(models.ErrTournamentNotFound), "no tournament for lobby")
			return
		}
		conn.Write(map[string]interface{}{
			"type":      models.EventStatisticsUpdate,
			"standings": leaderboard.Standings(t),
		})

	case "spectate":
		t, ok := s.Engine.TournamentForLobby(conn.LobbyID)
		if !ok {
			conn.WriteError(string(models.ErrTournamentNotFound), "no tournament for lobby")
			return
		}
		s.Engine.Spectators().Add(t.ID, claims.PlayerID)
		conn.Write(map[string]interface{}{
			"type":       models.EventBracketUpdate,
			"tournament": t,
			"standings":  leaderboard.Standings(t),
		})

	case "leave_lobby":
		conn.Cancel()

	default:
		conn.WriteError("INVALID_MESSAGE_TYPE", "unknown message type: "+msg.Type)
	}
}

// handleChat validates and appends a chat message.
func (s *PartyServer) handleChat(ctx context.Context, conn *broadcast.Conn, claims auth.PlayerClaims, msg *models.PartyMessage) {
	chat := models.ChatMessage{
		ID:         uuid.New(),
		LobbyID:    conn.LobbyID,
		SenderID:   claims.PlayerID,
		SenderName: claims.Name,
		Content:    stringField(msg.Payload, "content"),
		SentAt:     time.Now(),
	}
	if res := s.Gate.ValidateChat(&chat, claims.PlayerID); !res.Valid {
		conn.WriteError(string(res.Code), res.Reason)
		return
	}
	if err := s.Registry.AppendChat(ctx, chat); err != nil {
		conn.WriteError(err.Error(), "chat rejected")
	}
}

// handleHostAction authorizes and executes a privileged lobby command.
func (s *PartyServer) handleHostAction(ctx context.Context, conn *broadcast.Conn, claims auth.PlayerClaims, msg *models.PartyMessage) {
	action := models.HostAction{
		Type:        models.HostActionType(stringField(msg.Payload, "action")),
		LobbyID:     conn.LobbyID,
		RequesterID: claims.PlayerID,
	}
	if raw := stringField(msg.Payload, "target_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			conn.WriteError("INVALID_MESSAGE_TYPE", "target_id is not a uuid")
			return
		}
		action.TargetID = id
	}
	if rawSettings, ok := msg.Payload["settings"].(map[string]interface{}); ok {
		var settings models.PartySettings
		if err := decodePayload(rawSettings, &settings); err != nil {
			conn.WriteError("INVALID_MESSAGE_TYPE", "malformed settings")
			return
		}
		action.Settings = &settings
	}

	lob, ok := s.Registry.GetLobby(conn.LobbyID)
	if !ok {
		conn.WriteError(string(models.ErrLobbyNotFound), "lobby gone")
		return
	}
	lob.Mu.Lock()
	hostID := lob.HostPlayerID
	lob.Mu.Unlock()

	if res := s.Gate.AuthorizeHostAction(&action, hostID); !res.Valid {
		conn.WriteError(string(res.Code), res.Reason)
		return
	}

	var err error
	switch action.Type {
	case models.ActionKickPlayer:
		err = s.Registry.KickPlayer(ctx, conn.LobbyID, claims.PlayerID, action.TargetID)
		if err == nil {
			// Sever the kicked player's socket so they stop receiving lobby
			// traffic; their handler closes with KickedError.
			s.Hub.Disconnect(action.TargetID)
		}
	case models.ActionTransferHost:
		err = s.Registry.TransferHost(ctx, conn.LobbyID, claims.PlayerID, action.TargetID)
	case models.ActionUpdateSettings:
		if action.Settings == nil {
			conn.WriteError("INVALID_MESSAGE_TYPE", "update_settings requires settings")
			return
		}
		err = s.Registry.UpdateSettings(ctx, conn.LobbyID, claims.PlayerID, *action.Settings)
	case models.ActionStartTournament:
		_, err = s.Engine.StartTournament(ctx, conn.LobbyID, claims.PlayerID)
	case models.ActionCancelTournament:
		err = s.Engine.CancelTournament(ctx, conn.LobbyID, claims.PlayerID)
	case models.ActionCloseLobby:
		err = s.Registry.CloseLobby(ctx, conn.LobbyID, claims.PlayerID)
	default:
		conn.WriteError("INVALID_MESSAGE_TYPE", "unknown host action")
		return
	}
	if err != nil {
		conn.WriteError(err.Error(), "host action failed")
	}
}

// writePump drains the connection's outbound channel and keeps the socket
// alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *broadcast.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("failed to marshal outgoing msg for player %v: %v", conn.PlayerID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for player %v: %v", conn.PlayerID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ping failed for player %v, assuming disconnect: %v", conn.PlayerID, err)
				return
			}
		}
	}
}

// stringField pulls a string out of a payload map, or "".
func stringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}

// decodePayload round-trips a loosely typed payload into a concrete struct.
func decodePayload(payload map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
