// Package jwt issues and validates the two signed token kinds the engine
// uses: access tokens for authenticated sessions and short-lived pending
// tokens that prove a password check succeeded while a second factor is
// still outstanding.
//
// Pending tokens carry a mandatory purpose claim; a token missing or
// mismatching it never validates as pending, so an access token can never
// be replayed into the second-factor step or vice versa.
package jwt
