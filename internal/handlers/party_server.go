// internal/handlers/party_server.go

// Package handlers exposes the party service over HTTP and websockets: guest
// identity, lobby lifecycle endpoints, and the per-lobby websocket through
// which all real-time traffic flows. Every inbound websocket message passes
// the security gate before it reaches the registry or the tournament engine.
package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/anticheat"
	"github.com/dilemma-gg/party/internal/broadcast"
	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/party"
	"github.com/dilemma-gg/party/internal/security"
	"github.com/dilemma-gg/party/internal/tournament"
)

// PartyServer bundles the collaborators the HTTP and websocket handlers need.
type PartyServer struct {
	Cfg       *config.Config
	Log       *logrus.Logger
	Hub       *broadcast.Hub
	Registry  *party.Registry
	Engine    *tournament.Engine
	Gate      *security.Gate
	Validator *anticheat.Validator
}

// NewPartyServer wires the server from pre-built components.
func NewPartyServer(cfg *config.Config, log *logrus.Logger, hub *broadcast.Hub, reg *party.Registry, eng *tournament.Engine, gate *security.Gate, val *anticheat.Validator) *PartyServer {
	return &PartyServer{
		Cfg:       cfg,
		Log:       log,
		Hub:       hub,
		Registry:  reg,
		Engine:    eng,
		Gate:      gate,
		Validator: val,
	}
}
