// Package password provides Argon2id credential hashing with PHC string
// encoding and constant-time verification.
package password
