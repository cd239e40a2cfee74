// Package verification implements the email one-time-code flow that moves
// an account from inactive to active.
package verification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/mailer"
	"github.com/iliyamo/aura/internal/model"
	"github.com/iliyamo/aura/internal/repository"
	"github.com/iliyamo/aura/internal/utils"
)

// CodeTTL is how long an issued code stays valid.
const CodeTTL = 10 * time.Minute

var (
	ErrNoCodeFound = errors.New("no verification code found")
	ErrExpired     = errors.New("verification code expired")
	ErrMismatch    = errors.New("verification code does not match")
)

// CodeStore persists codes inside caller-owned transactions.
type CodeStore interface {
	InsertTx(ctx context.Context, tx *sql.Tx, userID uint64, code string, createdAt time.Time) (uint64, error)
	LatestUnconsumedForUpdateTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.VerificationCode, error)
	MarkConsumedTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error)
	InvalidateAllTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error)
}

// Activator flips the account to active.
type Activator interface {
	ActivateTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

// Service issues, delivers and checks codes.
type Service struct {
	db      *sql.DB
	codes   CodeStore
	users   Activator
	sender  mailer.Sender
	logger  *zap.Logger
	now     func() time.Time
	newCode func() (string, error)
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator overrides code generation.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newCode = gen }
}

// NewService wires the flow.
func NewService(db *sql.DB, codes CodeStore, users Activator, sender mailer.Sender, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:      db,
		codes:   codes,
		users:   users,
		sender:  sender,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newCode: utils.NewOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueTx creates a fresh unconsumed code inside tx and returns it.
func (s *Service) IssueTx(ctx context.Context, tx *sql.Tx, userID uint64) (string, error) {
	code, err := s.newCode()
	if err != nil {
		return "", err
	}
	if _, err := s.codes.InsertTx(ctx, tx, userID, code, s.now()); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return code, nil
}

// Deliver emails the code.  A failed delivery is logged here and returned
// for the caller to report; it never undoes issuance.
func (s *Service) Deliver(ctx context.Context, u *model.User, code string) mailer.Result {
	res := s.sender.Send(ctx, mailer.VerificationMessage(u.Email, u.Username, code))
	if !res.Sent {
		s.logger.Warn("verification email not delivered",
			zap.Uint64("user_id", u.ID),
			zap.String("reason", res.Reason))
	}
	return res
}

// Verify matches submitted against the live code and activates the
// account.  Checks run in order: no code, expired, mismatch.
func (s *Service) Verify(ctx context.Context, userID uint64, submitted string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	vc, err := s.codes.LatestUnconsumedForUpdateTx(ctx, tx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoCodeFound
	}
	if err != nil {
		return err
	}
	if err := check(vc, submitted, s.now()); err != nil {
		return err
	}
	consumed, err := s.codes.MarkConsumedTx(ctx, tx, vc.ID)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrNoCodeFound
	}
	if err := s.users.ActivateTx(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Resend supersedes every outstanding code with a new one and emails it.
func (s *Service) Resend(ctx context.Context, u *model.User) (mailer.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mailer.Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := s.codes.InvalidateAllTx(ctx, tx, u.ID); err != nil {
		return mailer.Result{}, err
	}
	code, err := s.IssueTx(ctx, tx, u.ID)
	if err != nil {
		return mailer.Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return mailer.Result{}, err
	}
	committed = true
	return s.Deliver(ctx, u, code), nil
}

// check validates a stored code against the submission at time now.
// Expiry is derived from the stored issue time on every call.
func check(vc *model.VerificationCode, submitted string, now time.Time) error {
	if now.After(vc.CreatedAt.Add(CodeTTL)) {
		return ErrExpired
	}
	if submitted != vc.Code {
		return ErrMismatch
	}
	return nil
}
