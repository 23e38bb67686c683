package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/hogarcare/authcore/internal"
	"github.com/hogarcare/authcore/internal/stores"
)

// RequestPasswordReset issues a time-boxed recovery token and hands it
// to the notification sender. It always returns nil for unknown or
// inactive emails, after a small randomized delay, so callers cannot
// enumerate accounts. Issuing a new token invalidates any earlier one
// for the same account.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.recovery == nil {
		return ErrRecoveryUnavailable
	}

	account, err := e.creds.GetAccountByEmail(ctx, email)
	if err != nil || !account.Active {
		enumerationDelay(ctx)
		return nil
	}

	token, err := internal.NewRecoveryToken(e.config.Recovery.TokenLength)
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(e.config.Recovery.TTL)
	if err := e.recovery.Create(ctx, account.ID, internal.HashToken(token), expiresAt); err != nil {
		return err
	}

	e.metricInc(MetricRecoveryRequest)
	e.emitAudit(ctx, auditEntry{
		action:      ActionUpdate,
		table:       credentialsTable,
		recordID:    account.ID,
		description: "password reset requested",
		success:     true,
		actorID:     account.ID,
	})

	if e.notifier == nil {
		e.warn("no notification sender; recovery token for %s not delivered", account.ID)
		return nil
	}
	err = e.notifier.SendTransactional(ctx, e.config.Recovery.NotificationTemplate, account.Email, map[string]string{
		"name":  account.Name,
		"token": token,
	})
	if err != nil {
		e.warn("recovery token delivery failed for %s: %v", account.ID, err)
	}

	return nil
}

// ResetPassword redeems a recovery token and installs a new password.
// The token is consumed atomically: of any concurrent redemptions
// exactly one succeeds and the rest get [ErrInvalidOrExpiredToken].
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.recovery == nil {
		return ErrRecoveryUnavailable
	}

	if len(token) != e.config.Recovery.TokenLength {
		e.metricInc(MetricRecoveryConfirmFailure)
		return ErrInvalidOrExpiredToken
	}

	// Hash before claiming so a policy rejection does not burn the token.
	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.metricInc(MetricRecoveryConfirmFailure)
		return ErrPasswordPolicy
	}

	tokenHash := internal.HashToken(token)
	accountID, expiresAt, err := e.recovery.Claim(ctx, tokenHash)
	if err != nil {
		e.metricInc(MetricRecoveryConfirmFailure)
		if errors.Is(err, stores.ErrRecoveryNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return err
	}

	if err := e.creds.UpdatePasswordHash(ctx, accountID, newHash); err != nil {
		// Best effort: put the token back so the user can retry after a
		// transient store failure.
		e.restoreRecoveryToken(ctx, accountID, tokenHash, expiresAt)
		e.metricInc(MetricRecoveryConfirmFailure)
		return err
	}

	e.metricInc(MetricRecoveryConfirmSuccess)
	e.emitAudit(ctx, auditEntry{
		action:      ActionUpdate,
		table:       credentialsTable,
		recordID:    accountID,
		description: "password reset completed",
		success:     true,
		actorID:     accountID,
	})

	return nil
}

// restoreRecoveryToken puts a claimed token back with its original
// expiry, so a restored token never outlives the one that was issued.
func (e *Engine) restoreRecoveryToken(ctx context.Context, accountID string, tokenHash [32]byte, expiresAt time.Time) {
	if err := e.recovery.Create(ctx, accountID, tokenHash, expiresAt); err != nil {
		e.warn("recovery token restore failed for %s: %v", accountID, err)
	}
}
