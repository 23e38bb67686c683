// Package authcore implements the security core of a multi-tenant
// care-facility management platform: credential verification with an
// optional TOTP second factor, backup recovery codes, time-boxed
// password-recovery tokens, and an asynchronous audit pipeline that
// records every security-relevant action.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder],
// [Config], and value types (LoginResult, EnrollmentSetup, AuditRecord,
// etc.). Internal coordination (audit dispatch, recovery-token storage,
// audit querying) lives under internal/ and is never exported directly.
//
// Persistence of accounts is owned by the embedding application, which
// supplies a [CredentialStore]. The engine never writes domain entities;
// it only mutates credential hashes, second-factor state, and backup
// codes through that interface.
//
// # Failure semantics
//
// Authentication, enrollment, and recovery errors surface as distinct
// sentinel errors without leaking account existence. Audit writes are
// fire-and-forget: a failing audit sink is logged and never fails or
// rolls back the operation being audited.
package authcore
