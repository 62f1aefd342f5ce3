package domain

import "fmt"

// Session is the credential pair handed to a fully authenticated client.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"` // always "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime, seconds
}

// ChallengeRequiredError is returned from login when the account has a second
// factor enabled. It carries the short-lived challenge token the client must
// present alongside a one-time code to complete authentication.
type ChallengeRequiredError struct {
	ChallengeToken string   `json:"challenge_token"`
	Methods        []string `json:"methods"` // e.g. ["totp", "recovery_code"]
	ExpiresIn      int64    `json:"expires_in"`
}

func (e *ChallengeRequiredError) Error() string {
	return fmt.Sprintf("two-factor challenge required (methods: %v)", e.Methods)
}
