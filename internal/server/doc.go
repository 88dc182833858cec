// Package server is a stand-in for the servers playground API, for local
// development and tests.
//
// It speaks the same wire protocol the client uses:
//
//	POST /tokens   {"username","password"} -> 200 {"token"} | 401 {"message"}
//	GET  /servers  Authorization: Bearer <token> -> 200 [{"name","distance"}]
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus exposition
//
// Users are checked against argon2id hashes; tokens are random, expire after
// a configurable TTL and are swept periodically. Logins are rate limited per
// client IP with an exponential block for repeated failures.
package server
