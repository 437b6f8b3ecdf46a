// internal/models/security.go
package models

// SecurityRiskLevel classifies every validation outcome for monitoring,
// independent of whether the action was rejected.
type SecurityRiskLevel string

const (
	RiskLow    SecurityRiskLevel = "LOW"
	RiskMedium SecurityRiskLevel = "MEDIUM"
	RiskHigh   SecurityRiskLevel = "HIGH"
)

// Score converts a risk level into the weight it contributes to a player's
// accumulated risk score.
func (r SecurityRiskLevel) Score() int {
	switch r {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	default:
		return 1
	}
}

// ViolationCode identifies a specific anti-cheat or security rule rejection.
type ViolationCode string

const (
	// Match result validation.
	ViolationMatchIDMismatch        ViolationCode = "MATCH_ID_MISMATCH"
	ViolationMatchTooShort          ViolationCode = "MATCH_TOO_SHORT"
	ViolationInconsistentStatistics ViolationCode = "INCONSISTENT_STATISTICS"

	// Tournament structure sanity.
	ViolationInvalidPlayerCount ViolationCode = "INVALID_PLAYER_COUNT"
	ViolationDuplicatePlayer    ViolationCode = "DUPLICATE_PLAYER"
	ViolationInvalidRoundState  ViolationCode = "INVALID_ROUND_STATE"

	// Session integrity.
	ViolationDuplicateSession ViolationCode = "DUPLICATE_SESSION_DETECTED"

	// Message security gate.
	ViolationWeakCodePattern      ViolationCode = "WEAK_CODE_PATTERN"
	ViolationInvalidMessageType   ViolationCode = "INVALID_MESSAGE_TYPE"
	ViolationMessageCountLimit    ViolationCode = "MESSAGE_COUNT_LIMIT_EXCEEDED"
	ViolationMessageRateLimit     ViolationCode = "MESSAGE_RATE_LIMIT_EXCEEDED"
	ViolationUnauthorizedHost     ViolationCode = "UNAUTHORIZED_HOST_ACTION"
	ViolationMissingTargetPlayer  ViolationCode = "MISSING_TARGET_PLAYER"
	ViolationChatMessageTooLong   ViolationCode = "CHAT_MESSAGE_TOO_LONG"
	ViolationChatSenderMismatch   ViolationCode = "CHAT_SENDER_MISMATCH"
	ViolationMaliciousChatContent ViolationCode = "MALICIOUS_CHAT_CONTENT"
)

// FlaggedBehavior names a recurring suspicious pattern attached to a player's
// anti-cheat metrics.
type FlaggedBehavior string

const (
	BehaviorImpossibleTiming   FlaggedBehavior = "IMPOSSIBLE_TIMING"
	BehaviorResultTampering    FlaggedBehavior = "RESULT_TAMPERING"
	BehaviorStatisticsMismatch FlaggedBehavior = "STATISTICS_MISMATCH"
	BehaviorSessionAbuse       FlaggedBehavior = "SESSION_ABUSE"
	BehaviorMessageFlooding    FlaggedBehavior = "MESSAGE_FLOODING"
)

// ValidationResult is the uniform outcome of every gate/validator rule.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Code      ViolationCode     `json:"code,omitempty"`
	RiskLevel SecurityRiskLevel `json:"riskLevel"`
	Reason    string            `json:"reason,omitempty"`
	ShouldLog bool              `json:"shouldLog"`
}

// OK is the successful validation outcome at the given risk level.
func OK(risk SecurityRiskLevel) ValidationResult {
	return ValidationResult{Valid: true, RiskLevel: risk}
}

// Reject builds a failed validation outcome.
func Reject(code ViolationCode, risk SecurityRiskLevel, reason string) ValidationResult {
	return ValidationResult{Valid: false, Code: code, RiskLevel: risk, Reason: reason, ShouldLog: risk != RiskLow}
}
