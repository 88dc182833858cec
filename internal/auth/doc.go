// Package auth owns the login session.
//
// A Manager validates credentials, exchanges them for a bearer token, keeps
// the token in a session.Store and tells subscribers (the router, views)
// whenever authorization flips. The package also carries the argon2id
// password helpers used by the stub API server and the hash-password
// command, and the interactive credential prompts used by the CLI.
package auth
