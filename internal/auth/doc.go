// Package auth holds the shared-secret token: a constant-time verification
// guard and a bolt-backed credential store that generates the token on
// first run and supports rotation.
package auth
