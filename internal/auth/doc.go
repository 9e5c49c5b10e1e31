// Package auth issues and verifies the bearer tokens that guard the
// bridge's HTTP API.
//
// Tokens are HS256 JWTs signed with security.jwt.secret. There is no user
// store: tokens are minted offline with `dyson360bridge token <subject>`
// and carry one of two roles:
//
//   - viewer: read characteristics, state and history
//   - controller: viewer plus writes and identify
package auth
