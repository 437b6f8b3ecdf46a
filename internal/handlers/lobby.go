// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dilemma-gg/party/internal/auth"
	"github.com/dilemma-gg/party/internal/leaderboard"
	"github.com/dilemma-gg/party/internal/models"
)

// GuestTokenHandler issues an ephemeral player identity. The token is set as
// an auth_token cookie and echoed in the response body for non-browser
// clients.
func (s *PartyServer) GuestTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Guest"
	}
	if len(name) > 32 {
		name = name[:32]
	}

	playerID := uuid.New()
	token, err := auth.CreatePlayerToken(playerID, name)
	if err != nil {
		s.Log.WithError(err).Error("creating guest token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"player_id": playerID.String(),
		"name":      name,
		"token":     token,
	})
}

// CreateLobbyHandler creates a lobby with the requester as host. Optional
// settings in the body override the defaults.
func (s *PartyServer) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	settings := models.DefaultSettings()
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil && err.Error() != "EOF" {
		http.Error(w, "bad lobby request payload", http.StatusBadRequest)
		return
	}

	lob, err := s.Registry.CreateLobby(r.Context(), claims.PlayerID, claims.Name, settings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap := lob.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// JoinLobbyHandler adds the requester to the lobby matching the join code.
func (s *PartyServer) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad join request payload", http.StatusBadRequest)
		return
	}

	if res := s.Gate.ValidateLobbyCode(req.Code); !res.Valid {
		http.Error(w, string(res.Code), http.StatusBadRequest)
		return
	}
	lob, err := s.Registry.JoinLobby(r.Context(), claims.PlayerID, claims.Name, req.Code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap := lob.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// ListLobbiesHandler returns every open lobby snapshot.
func (s *PartyServer) ListLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.Registry.ListLobbies())
}

// StandingsHandler returns the live leaderboard of the lobby's tournament.
func (s *PartyServer) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	lobbyID, err := uuid.Parse(r.URL.Query().Get("lobby_id"))
	if err != nil {
		http.Error(w, "invalid lobby_id", http.StatusBadRequest)
		return
	}
	t, ok := s.Engine.TournamentForLobby(lobbyID)
	if !ok {
		http.Error(w, string(models.ErrTournamentNotFound), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(leaderboard.Standings(t))
}

// authenticate resolves the requester's identity from the auth_token cookie,
// falling back to a bearer Authorization header.
func (s *PartyServer) authenticate(w http.ResponseWriter, r *http.Request) (auth.PlayerClaims, bool) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		http.Error(w, "missing auth_token", http.StatusUnauthorized)
		return auth.PlayerClaims{}, false
	}
	claims, err := auth.AuthenticatePlayerToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusForbidden)
		return auth.PlayerClaims{}, false
	}
	return claims, true
}

// writeError maps domain errors to HTTP statuses, keeping the error code as
// the body so clients can branch on it.
func (s *PartyServer) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, models.ErrLobbyNotFound), errors.Is(err, models.ErrTournamentNotFound),
		errors.Is(err, models.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrHostPrivilegesRequired):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrLobbyFull), errors.Is(err, models.ErrTournamentAlreadyStarted):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}
