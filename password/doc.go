// Package password wraps bcrypt credential hashing behind a small,
// configuration-validated type. Comparison is constant-time by construction
// and never distinguishes "unknown user" from "wrong password" in its error
// shape; that classification belongs to the engine.
package password
