// Package flashauth implements the authentication session lifecycle behind
// the flash services: issuance, verification, rotation, and revocation of
// paired access/refresh tokens, backed by a Redis read-through user cache and
// a durable user directory.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// flashauth is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy, and value types ([Principal], [AuthResult],
// [Credentials]). Token encoding lives in token/, Redis access in cache/,
// the durable account store contract behind [Directory] (implemented by
// directory/), and email dispatch behind [EmailQueue] (implemented by
// mailer/). None of those sub-packages import flashauth back.
//
// # Failure policy
//
// Authentication paths fail closed: codec and store errors are re-classified
// into the package taxonomy before they cross the Engine boundary; raw
// driver errors never escape. The user-projection cache degrades to a miss
// when Redis is unreachable, but the refresh-token ledger is authoritative:
// ledger unavailability rejects the request instead of skipping the
// revocation check. SignOut is the single operation guaranteed to never fail
// visibly.
package flashauth
