// Package identity authenticates pool participants.
//
// It provides:
//   - TokenIssuer: issues and verifies HS256 participant session tokens
//   - RequireParticipant: Gin middleware enforcing a Bearer session token
//   - OptionalParticipant: Gin middleware that binds the caller when a token is present
package identity
