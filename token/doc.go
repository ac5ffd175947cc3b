// Package token issues and verifies the compact signed credentials used by
// the authentication engine: short-lived stateless access tokens, rotating
// refresh tokens carrying a unique token id (jti), and email-verification
// tokens.
//
// Access and refresh tokens are signed with distinct secrets so a compromise
// of one class cannot forge the other. Verification is a pure function of
// secret and input: no external state is consulted for signature or expiry
// checks. Only the refresh-token ledger in cache/ adds statefulness, and
// that lookup belongs to the engine, not to this package.
package token
