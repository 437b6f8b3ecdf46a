// internal/models/errors.go
package models

// LobbyError enumerates recoverable lobby-level failures. All values are
// surfaced to the requesting client; none crash the service.
type LobbyError string

func (e LobbyError) Error() string { return string(e) }

const (
	ErrLobbyNotFound            LobbyError = "LOBBY_NOT_FOUND"
	ErrLobbyFull                LobbyError = "LOBBY_FULL"
	ErrInvalidLobbyCode         LobbyError = "INVALID_LOBBY_CODE"
	ErrTournamentAlreadyStarted LobbyError = "TOURNAMENT_ALREADY_STARTED"
	ErrInsufficientPlayers      LobbyError = "INSUFFICIENT_PLAYERS"
	ErrHostPrivilegesRequired   LobbyError = "HOST_PRIVILEGES_REQUIRED"
	ErrPlayerAlreadyInLobby     LobbyError = "PLAYER_ALREADY_IN_LOBBY"
	ErrPlayerNotInLobby         LobbyError = "PLAYER_NOT_IN_LOBBY"
	ErrCannotKickSelf           LobbyError = "CANNOT_KICK_SELF"
	ErrCannotTransferToSelf     LobbyError = "CANNOT_TRANSFER_TO_SELF"
)

// TournamentError enumerates recoverable tournament-level failures.
type TournamentError string

func (e TournamentError) Error() string { return string(e) }

const (
	ErrTournamentNotFound      TournamentError = "TOURNAMENT_NOT_FOUND"
	ErrInvalidMatchPairing     TournamentError = "INVALID_MATCH_PAIRING"
	ErrPlayerNotInTournament   TournamentError = "PLAYER_NOT_IN_TOURNAMENT"
	ErrMatchAlreadyInProgress  TournamentError = "MATCH_ALREADY_IN_PROGRESS"
	ErrTournamentCompleted     TournamentError = "TOURNAMENT_COMPLETED"
	ErrInvalidTournamentFormat TournamentError = "INVALID_TOURNAMENT_FORMAT"
	ErrBracketGenerationFailed TournamentError = "BRACKET_GENERATION_FAILED"
	ErrMatchNotFound           TournamentError = "MATCH_NOT_FOUND"
)
