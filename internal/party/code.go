// internal/party/code.go
package party

import (
	"crypto/rand"
	"fmt"

	"github.com/dilemma-gg/party/internal/security"
)

// codeLength is the join-code length exposed to clients.
const codeLength = 6

// codeAlphabet omits ambiguous characters (0/O, 1/I) so codes survive being
// read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newJoinCode produces a random 6-character uppercase alphanumeric code that
// does not match a weak pattern. Uniqueness among active lobbies is enforced
// by the registry's code index, not here.
func newJoinCode() (string, error) {
	for attempt := 0; attempt < 32; attempt++ {
		buf := make([]byte, codeLength)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("reading random bytes for join code: %w", err)
		}
		out := make([]byte, codeLength)
		for i, b := range buf {
			out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
		}
		code := string(out)
		if !security.IsWeakCode(code) {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a strong join code")
}
