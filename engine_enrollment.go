package authcore

import (
	"context"
	"strings"
	"time"
)

// BeginEnrollment provisions a fresh TOTP secret for the account and
// stores it in pending state. The returned setup carries the base32
// secret and an otpauth:// URI for the authenticator app; the factor
// does not gate login until [Engine.ConfirmEnrollment] succeeds. An
// account with an active factor must go through
// [Engine.DisableSecondFactor] first.
func (e *Engine) BeginEnrollment(ctx context.Context, accountID string) (*EnrollmentSetup, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.creds.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	second, err := e.creds.GetSecondFactor(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if second != nil && second.Status == SecondFactorEnabled {
		return nil, ErrSecondFactorAlreadyEnabled
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	err = e.creds.SetSecondFactor(ctx, account.ID, SecondFactorRecord{
		Secret: raw,
		Status: SecondFactorPending,
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEnrollmentStarted)
	e.emitAudit(ctx, auditEntry{
		action:      ActionUpdate,
		table:       credentialsTable,
		recordID:    account.ID,
		description: "second factor enrollment started",
		success:     true,
		actorID:     account.ID,
	})

	return &EnrollmentSetup{
		SecretBase32:    encoded,
		ProvisioningURI: e.totp.ProvisionURI(encoded, account.Email),
	}, nil
}

// ConfirmEnrollment verifies a code from the freshly provisioned
// authenticator and activates the factor. On success it returns the
// account's backup codes in plaintext; this is the only time they are
// visible. A wrong code returns [ErrInvalidVerificationCode] and leaves
// the enrollment pending.
func (e *Engine) ConfirmEnrollment(ctx context.Context, accountID, code string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.creds.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	second, err := e.creds.GetSecondFactor(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if second == nil || second.Status != SecondFactorPending {
		return nil, ErrSecondFactorNotEnrolled
	}

	ok, counter, err := e.totp.VerifyCode(second.Secret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidVerificationCode
	}

	codes, records, err := e.newBackupCodeSet(account.ID)
	if err != nil {
		return nil, err
	}

	// Backup codes land before the factor flips to enabled; a failure in
	// between leaves the enrollment pending and login ungated.
	if err := e.creds.ReplaceBackupCodes(ctx, account.ID, records); err != nil {
		return nil, err
	}
	err = e.creds.SetSecondFactor(ctx, account.ID, SecondFactorRecord{
		Secret:          second.Secret,
		Status:          SecondFactorEnabled,
		LastUsedCounter: counter,
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEnrollmentConfirmed)
	e.metricInc(MetricBackupCodeGenerated)
	e.emitAudit(ctx, auditEntry{
		action:      ActionUpdate,
		table:       credentialsTable,
		recordID:    account.ID,
		description: "second factor enabled",
		success:     true,
		actorID:     account.ID,
	})

	e.deliverBackupCodes(ctx, account, codes)

	return codes, nil
}

// DisableSecondFactor removes the account's TOTP secret and backup
// codes. The caller is responsible for reauthenticating the user before
// invoking this.
func (e *Engine) DisableSecondFactor(ctx context.Context, accountID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	account, err := e.creds.GetAccountByID(ctx, accountID)
	if err != nil {
		return ErrAccountNotFound
	}

	err = e.creds.SetSecondFactor(ctx, account.ID, SecondFactorRecord{
		Status: SecondFactorDisabled,
	})
	if err != nil {
		return err
	}
	if err := e.creds.ReplaceBackupCodes(ctx, account.ID, nil); err != nil {
		return err
	}

	e.metricInc(MetricSecondFactorDisabledCount)
	e.emitAudit(ctx, auditEntry{
		action:      ActionUpdate,
		table:       credentialsTable,
		recordID:    account.ID,
		description: "second factor disabled",
		success:     true,
		actorID:     account.ID,
	})

	return nil
}

// RegenerateBackupCodes replaces the account's backup codes and returns
// the new plaintext set. All previously issued codes stop working.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	account, err := e.creds.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}

	second, err := e.creds.GetSecondFactor(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if second == nil || second.Status != SecondFactorEnabled {
		return nil, ErrSecondFactorNotEnrolled
	}

	codes, records, err := e.newBackupCodeSet(account.ID)
	if err != nil {
		return nil, err
	}
	if err := e.creds.ReplaceBackupCodes(ctx, account.ID, records); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeGenerated)
	e.emitAudit(ctx, auditEntry{
		action:      ActionUpdate,
		table:       credentialsTable,
		recordID:    account.ID,
		description: "backup codes regenerated",
		success:     true,
		actorID:     account.ID,
	})

	e.deliverBackupCodes(ctx, account, codes)

	return codes, nil
}

func (e *Engine) newBackupCodeSet(accountID string) ([]string, []BackupCodeRecord, error) {
	count := e.config.TOTP.BackupCodeCount
	codes := make([]string, 0, count)
	records := make([]BackupCodeRecord, 0, count)

	for len(codes) < count {
		code, err := newBackupCode(e.config.TOTP.BackupCodeLength)
		if err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		records = append(records, BackupCodeRecord{Hash: backupCodeHash(accountID, code)})
	}

	return codes, records, nil
}

func (e *Engine) deliverBackupCodes(ctx context.Context, account Account, codes []string) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.SendTransactional(ctx, "backup-codes", account.Email, map[string]string{
		"name":  account.Name,
		"codes": strings.Join(codes, "\n"),
	})
	if err != nil {
		e.warn("backup code delivery failed for %s: %v", account.ID, err)
	}
}
