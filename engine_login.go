package authcore

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	loginDelayMinMS = 20
	loginDelayMaxMS = 40

	credentialsTable = "users"
)

// Login verifies email and password. When the account has a mandatory
// second factor the result carries a short-lived pending token instead
// of an access token; complete the login with [Engine.ConfirmSecondFactor].
//
// Unknown emails, wrong passwords and inactive accounts all return
// [ErrInvalidCredentials]-shaped failures with comparable timing, so a
// remote caller cannot tell which accounts exist.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.creds.GetAccountByEmail(ctx, email)
	if err != nil {
		// Burn an equivalent hash comparison before failing.
		_, _ = e.passwordHash.Verify(plainPassword, e.dummyHash)
		e.metricInc(MetricLoginFailure)
		e.auditLoginFailure(ctx, "", "unknown email")
		return nil, ErrInvalidCredentials
	}

	ok, err := e.passwordHash.Verify(plainPassword, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.auditLoginFailure(ctx, account.ID, "wrong password")
		return nil, ErrInvalidCredentials
	}

	if !account.Active {
		e.metricInc(MetricLoginFailure)
		e.auditLoginFailure(ctx, account.ID, "inactive account")
		return nil, ErrAccountInactive
	}

	second, err := e.creds.GetSecondFactor(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
	}

	if second != nil && second.Status == SecondFactorEnabled {
		pending, err := e.tokens.CreatePending(account.ID)
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricSecondFactorRequired)
		return &LoginResult{
			RequiresTwoFactor: true,
			PendingToken:      pending,
		}, nil
	}

	return e.completeLogin(ctx, account, "password")
}

// ConfirmSecondFactor redeems a pending token together with a TOTP code
// (6 digits) or a backup code (8 digits). Expired or malformed pending
// tokens return [ErrChallengeExpired]; a well-formed but wrong code
// returns [ErrInvalidSecondFactor].
func (e *Engine) ConfirmSecondFactor(ctx context.Context, pendingToken, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.tokens.ParsePending(pendingToken)
	if err != nil {
		e.metricInc(MetricSecondFactorFailure)
		return nil, ErrChallengeExpired
	}

	account, err := e.creds.GetAccountByID(ctx, claims.UID)
	if err != nil {
		e.metricInc(MetricSecondFactorFailure)
		return nil, ErrInvalidCredentials
	}
	if !account.Active {
		e.metricInc(MetricSecondFactorFailure)
		return nil, ErrAccountInactive
	}

	second, err := e.creds.GetSecondFactor(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
	}

	// The factor may have been disabled between challenge issuance and
	// redemption; the password already checked out, so finish the login.
	if second == nil || second.Status != SecondFactorEnabled {
		return e.completeLogin(ctx, account, "password")
	}

	switch len(code) {
	case e.config.TOTP.Digits:
		if err := e.verifyTOTPStep(ctx, account.ID, second, code); err != nil {
			return nil, err
		}
		e.metricInc(MetricSecondFactorSuccess)
		return e.completeLogin(ctx, account, "totp")

	case e.config.TOTP.BackupCodeLength:
		if !isNumericString(code) {
			e.metricInc(MetricSecondFactorFailure)
			return nil, ErrCodeMalformed
		}
		consumed, err := e.creds.ConsumeBackupCode(ctx, account.ID, backupCodeHash(account.ID, code))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
		}
		if !consumed {
			e.metricInc(MetricBackupCodeFailed)
			e.metricInc(MetricSecondFactorFailure)
			e.auditLoginFailure(ctx, account.ID, "backup code rejected")
			return nil, ErrInvalidSecondFactor
		}
		e.metricInc(MetricBackupCodeUsed)
		e.metricInc(MetricSecondFactorSuccess)
		return e.completeLogin(ctx, account, "backup code")

	default:
		e.metricInc(MetricSecondFactorFailure)
		return nil, ErrCodeMalformed
	}
}

func (e *Engine) verifyTOTPStep(ctx context.Context, accountID string, second *SecondFactorRecord, code string) error {
	ok, counter, err := e.totp.VerifyCode(second.Secret, code, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricSecondFactorFailure)
		e.auditLoginFailure(ctx, accountID, "totp code rejected")
		return ErrInvalidSecondFactor
	}
	if counter <= second.LastUsedCounter {
		e.metricInc(MetricSecondFactorFailure)
		e.auditLoginFailure(ctx, accountID, "totp code replayed")
		return ErrInvalidSecondFactor
	}
	return e.creds.UpdateSecondFactorCounter(ctx, accountID, counter)
}

func (e *Engine) completeLogin(ctx context.Context, account Account, method string) (*LoginResult, error) {
	access, err := e.tokens.CreateAccess(account.ID, account.Email, account.Role)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEntry{
		action:      ActionLogin,
		table:       credentialsTable,
		recordID:    account.ID,
		description: "login via " + method,
		success:     true,
		actorID:     account.ID,
	})

	return &LoginResult{
		AccessToken: access,
		Account: &AccountSummary{
			ID:    account.ID,
			Email: account.Email,
			Name:  account.Name,
			Role:  account.Role,
		},
	}, nil
}

func (e *Engine) auditLoginFailure(ctx context.Context, accountID, reason string) {
	e.emitAudit(ctx, auditEntry{
		action:      ActionLogin,
		table:       credentialsTable,
		recordID:    accountID,
		description: "login failed",
		success:     false,
		errText:     reason,
		actorID:     accountID,
	})
}

// enumerationDelay sleeps a small random interval so negative responses
// on anonymous flows do not reveal whether the account exists.
func enumerationDelay(ctx context.Context) {
	span := int64(loginDelayMaxMS - loginDelayMinMS + 1)
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	ms := int64(loginDelayMinMS)
	if err == nil {
		ms += n.Int64()
	}

	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
