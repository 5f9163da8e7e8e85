// Package auth issues session tokens and verifies employee credentials.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexus-webapi/nexus/internal/models"
	"github.com/nexus-webapi/nexus/internal/security"
	"github.com/nexus-webapi/nexus/internal/store"
	log "github.com/sirupsen/logrus"
)

// Issuer mints session tokens, reusing an employee's active token when one exists.
type Issuer struct {
	tokens store.TokenStore
	opts   security.TokenOptions
	now    func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(tokens store.TokenStore, opts security.TokenOptions) *Issuer {
	return &Issuer{
		tokens: tokens,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the wall clock, for tests.
func (i *Issuer) SetClock(now func() time.Time) {
	if now != nil {
		i.now = now
	}
}

// Options returns the token parameters the issuer signs with.
func (i *Issuer) Options() security.TokenOptions {
	return i.opts
}

// IssueOrRenew returns the employee's latest active token with its expiry
// pushed to now+lifetime, or signs and stores a new one.
//
// The token string is never rotated on renewal; only the stored expiration
// moves. A stored token is reused only while its signed claims still verify,
// so the returned string always passes ParseToken at now.
func (i *Issuer) IssueOrRenew(ctx context.Context, employee *models.Employee) (string, error) {
	if employee == nil || employee.ID == 0 {
		return "", fmt.Errorf("auth: issue token: missing employee")
	}

	var issued string
	errLock := i.tokens.WithinEmployeeLock(ctx, employee.ID, func(tx store.TokenTx) error {
		now := i.now().UTC()
		expiresAt := now.Add(i.opts.Lifetime)

		existing, errFind := tx.LatestActiveToken(ctx, employee.ID, now)
		if errFind == nil {
			if _, errParse := security.ParseToken(i.opts, existing.Token, now); errParse != nil {
				// The row outlived its signed exp; a reused string would fail the gate.
				if _, errDelete := tx.DeleteToken(ctx, existing.Token); errDelete != nil {
					return fmt.Errorf("drop stale token: %w", errDelete)
				}
				log.WithError(errParse).WithField("employee_id", employee.ID).Debug("stored token no longer verifies, minting a new one")
				errFind = store.ErrNotFound
			}
		}
		if errFind == nil {
			if errExtend := tx.ExtendToken(ctx, existing.ID, expiresAt); errExtend != nil {
				return fmt.Errorf("extend token: %w", errExtend)
			}
			issued = existing.Token
			log.WithFields(log.Fields{"employee_id": employee.ID, "expires_at": expiresAt}).Debug("session token renewed")
			return nil
		}
		if !errors.Is(errFind, store.ErrNotFound) {
			return fmt.Errorf("find active token: %w", errFind)
		}

		keys, errKeys := tx.PermissionKeys(ctx, employee.ID)
		if errKeys != nil {
			return fmt.Errorf("load permissions: %w", errKeys)
		}
		signed, signedExpiry, errSign := security.GenerateToken(i.opts, employee.ID, employee.Name, keys, now)
		if errSign != nil {
			return fmt.Errorf("sign token: %w", errSign)
		}
		row := &models.UserToken{
			EmployeeID: employee.ID,
			Token:      signed,
			Expiration: signedExpiry,
		}
		if errCreate := tx.CreateToken(ctx, row); errCreate != nil {
			return fmt.Errorf("store token: %w", errCreate)
		}
		issued = signed
		log.WithFields(log.Fields{"employee_id": employee.ID, "permissions": len(keys)}).Debug("session token issued")
		return nil
	})
	if errLock != nil {
		return "", fmt.Errorf("auth: issue token: %w", errLock)
	}
	return issued, nil
}
