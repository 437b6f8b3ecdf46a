// internal/security/gate.go
package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dilemma-gg/party/internal/config"
	"github.com/dilemma-gg/party/internal/models"
)

// Gate validates chat messages and host actions before they reach the lobby
// registry or tournament engine. Every outcome carries a risk level for
// monitoring, whether or not the action is rejected.
type Gate struct {
	cfg *config.Config
	log *logrus.Logger

	limiter *rateLimiter
}

// NewGate builds a gate with its own rate-limit state.
func NewGate(cfg *config.Config, log *logrus.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		log:     log,
		limiter: newRateLimiter(cfg),
	}
}

// maliciousContent matches markup and script-injection attempts in chat.
var maliciousContent = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
	regexp.MustCompile(`<\s*/?\s*[a-zA-Z][^>]*>`),
}

// IsWeakCode reports whether a lobby join code matches a guessable pattern:
// all-identical characters or a sequential run of digits or letters.
func IsWeakCode(code string) bool {
	if code == "" {
		return true
	}
	identical := true
	ascending := true
	for i := 1; i < len(code); i++ {
		if code[i] != code[0] {
			identical = false
		}
		if code[i] != code[i-1]+1 {
			ascending = false
		}
	}
	return identical || ascending
}

// ValidateLobbyCode checks code shape and guessability. Weak all-identical
// codes rate HIGH; sequential runs rate MEDIUM.
func (g *Gate) ValidateLobbyCode(code string) models.ValidationResult {
	if len(code) != 6 || strings.ToUpper(code) != code {
		return models.Reject(models.ViolationWeakCodePattern, models.RiskMedium, "code must be 6 uppercase alphanumerics")
	}
	if IsWeakCode(code) {
		risk := models.RiskMedium
		if code[1] == code[0] { // all-identical run, trivially guessable
			risk = models.RiskHigh
		}
		return models.Reject(models.ViolationWeakCodePattern, risk, "code matches a weak pattern")
	}
	return models.OK(models.RiskLow)
}

// ValidateEnvelope structurally checks an inbound PartyMessage before dispatch.
func (g *Gate) ValidateEnvelope(msg *models.PartyMessage) models.ValidationResult {
	if msg == nil || msg.Type == "" {
		return models.Reject(models.ViolationInvalidMessageType, models.RiskMedium, "missing message type")
	}
	if msg.SenderID == uuid.Nil {
		return models.Reject(models.ViolationInvalidMessageType, models.RiskMedium, "missing sender id")
	}
	return models.OK(models.RiskLow)
}

// CheckRate applies the sliding-window rate limit for one sender and records
// the message when allowed. Callers must invoke it exactly once per inbound
// message.
func (g *Gate) CheckRate(senderID uuid.UUID) models.ValidationResult {
	return g.limiter.allow(senderID)
}

// AuthorizeHostAction verifies that a host action comes from the current host
// and names a target when one is required. Authorized host actions are always
// flagged for audit logging.
func (g *Gate) AuthorizeHostAction(action *models.HostAction, currentHostID uuid.UUID) models.ValidationResult {
	if action.RequesterID != currentHostID {
		res := models.Reject(models.ViolationUnauthorizedHost, models.RiskHigh,
			fmt.Sprintf("player %s is not the lobby host", action.RequesterID))
		g.log.WithFields(logrus.Fields{
			"lobby":     action.LobbyID,
			"requester": action.RequesterID,
			"action":    action.Type,
		}).Warn("unauthorized host action")
		return res
	}
	if action.Type.RequiresTarget() && action.TargetID == uuid.Nil {
		return models.Reject(models.ViolationMissingTargetPlayer, models.RiskMedium, "host action requires a target player")
	}
	res := models.OK(models.RiskLow)
	res.ShouldLog = true
	return res
}

// ValidateChat applies content rules to a chat message. The authenticated
// sender is the identity bound to the connection, not the one claimed in the
// message body.
func (g *Gate) ValidateChat(msg *models.ChatMessage, authenticatedSender uuid.UUID) models.ValidationResult {
	if msg.SenderID != authenticatedSender {
		return models.Reject(models.ViolationChatSenderMismatch, models.RiskHigh,
			"chat sender does not match the authenticated connection")
	}
	if len(msg.Content) > g.cfg.MaxChatLength {
		return models.Reject(models.ViolationChatMessageTooLong, models.RiskLow,
			fmt.Sprintf("message exceeds %d characters", g.cfg.MaxChatLength))
	}
	for _, re := range maliciousContent {
		if re.MatchString(msg.Content) {
			return models.Reject(models.ViolationMaliciousChatContent, models.RiskHigh,
				"message contains markup or script content")
		}
	}
	return models.OK(models.RiskLow)
}

// Housekeep trims expired rate-limit history. Runs on the server's maintenance
// ticker.
func (g *Gate) Housekeep() {
	g.limiter.trim()
}
