package authcore

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed or on a nil receiver.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidCredentials is returned for a wrong password or an unknown
	// email. The two cases are intentionally indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when the account exists but has been
	// deactivated by an administrator.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountNotFound is returned by account-scoped operations when the
	// referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrChallengeExpired is returned when a pending second-factor token is
	// missing, malformed, expired, or carries the wrong purpose.
	ErrChallengeExpired = errors.New("pending challenge invalid or expired")
	// ErrInvalidSecondFactor is returned when a well-formed TOTP or backup
	// code does not verify against the account's second factor.
	ErrInvalidSecondFactor = errors.New("invalid second factor code")
	// ErrCodeMalformed is returned when a submitted code has the wrong
	// length or contains non-digit characters. Distinct from
	// ErrInvalidSecondFactor so callers can give actionable feedback.
	ErrCodeMalformed = errors.New("second factor code malformed")
	// ErrSecondFactorNotEnrolled is returned when a confirmation or
	// regeneration is attempted without a prior BeginEnrollment.
	ErrSecondFactorNotEnrolled = errors.New("second factor not enrolled")
	// ErrSecondFactorAlreadyEnabled is returned when enrollment is started
	// for an account whose second factor is active. Disable it first.
	ErrSecondFactorAlreadyEnabled = errors.New("second factor already enabled")
	// ErrInvalidVerificationCode is returned when the enrollment
	// confirmation code does not verify against the pending secret.
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	// ErrSecondFactorUnavailable is returned when the credential store
	// fails during a second-factor operation.
	ErrSecondFactorUnavailable = errors.New("second factor backend unavailable")
	// ErrInvalidOrExpiredToken is returned when a recovery token is
	// unknown, already consumed, or past its expiry.
	ErrInvalidOrExpiredToken = errors.New("recovery token invalid or expired")
	// ErrRecoveryUnavailable is returned when no recovery-token store is
	// configured, typically because the engine was built without Redis.
	ErrRecoveryUnavailable = errors.New("password recovery backend unavailable")
	// ErrPasswordPolicy is returned when a new password does not meet the
	// minimum length requirement.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrAuditUnavailable is returned by audit queries when no audit store
	// is configured or the store fails. Audit writes never return it.
	ErrAuditUnavailable = errors.New("audit store unavailable")
)
