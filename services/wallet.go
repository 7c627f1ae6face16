package services

import (
	"errors"
	"fmt"
	"time"

	"referral-ledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrWalletNotFound = errors.New("wallet not found")

// WalletStore credits wallets inside the caller's transaction.
type WalletStore interface {
	Credit(tx *gorm.DB, userID string, amount decimal.Decimal) error
}

// DBWalletStore issues relative increments against the wallets mirror table,
// so concurrent credits to the same wallet commute.
type DBWalletStore struct{}

func (DBWalletStore) Credit(tx *gorm.DB, userID string, amount decimal.Decimal) error {
	res := tx.Model(&models.Wallet{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("credit wallet %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// EnsureWallet creates an empty active wallet for userID if none exists (idempotent).
func EnsureWallet(db *gorm.DB, userID string) error {
	now := time.Now()
	w := models.Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  "ZAR",
		Balance:   decimal.Zero,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&w).Error
}

// WalletBalance returns the current balance, ErrWalletNotFound if absent.
func WalletBalance(db *gorm.DB, userID string) (decimal.Decimal, error) {
	var w models.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	return w.Balance, nil
}
