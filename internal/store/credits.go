package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	reservationReserved = "reserved"
	reservationRefunded = "refunded"
)

// ReserveCredits debits amount from the user's balance for jobID. Calling it
// again for the same job reports the earlier outcome without debiting twice.
// It returns false when the balance is too low.
func (s *Store) ReserveCredits(ctx context.Context, userID, jobID string, amount int) (bool, error) {
	reserved := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var status string
		err := tx.GetContext(ctx, &status, "SELECT status FROM credit_reservations WHERE job_id = ? FOR UPDATE", jobID)
		if err == nil {
			reserved = status == reservationReserved
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read reservation: %w", err)
		}

		var balance int
		err = tx.GetContext(ctx, &balance, "SELECT balance FROM credit_balances WHERE user_id = ? FOR UPDATE", userID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read balance: %w", err)
		}
		if balance < amount {
			return nil
		}

		if _, err := tx.ExecContext(ctx, "UPDATE credit_balances SET balance = balance - ? WHERE user_id = ?", amount, userID); err != nil {
			return fmt.Errorf("failed to debit balance: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO credit_reservations (job_id, user_id, amount, status) VALUES (?, ?, ?, ?)",
			jobID, userID, amount, reservationReserved); err != nil {
			return fmt.Errorf("failed to record reservation: %w", err)
		}

		reserved = true
		return nil
	})
	return reserved, err
}

// RefundCredits returns a job's reservation to the balance. Refunding a job
// that was never reserved, or was already refunded, does nothing.
func (s *Store) RefundCredits(ctx context.Context, userID, jobID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var res struct {
			UserID string `db:"user_id"`
			Amount int    `db:"amount"`
			Status string `db:"status"`
		}
		err := tx.GetContext(ctx, &res, "SELECT user_id, amount, status FROM credit_reservations WHERE job_id = ? FOR UPDATE", jobID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read reservation: %w", err)
		}
		if res.Status == reservationRefunded {
			return nil
		}

		if _, err := tx.ExecContext(ctx, "UPDATE credit_balances SET balance = balance + ? WHERE user_id = ?", res.Amount, res.UserID); err != nil {
			return fmt.Errorf("failed to credit balance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE credit_reservations SET status = ? WHERE job_id = ?", reservationRefunded, jobID); err != nil {
			return fmt.Errorf("failed to mark reservation refunded: %w", err)
		}
		return nil
	})
}

// Balance returns the user's available credits; unknown users have none
func (s *Store) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.GetContext(ctx, &balance, "SELECT balance FROM credit_balances WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// GrantCredits adds credits to a user's balance, creating it if needed
func (s *Store) GrantCredits(ctx context.Context, userID string, amount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_balances (user_id, balance) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}
	return nil
}
