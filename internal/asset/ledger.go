package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/yieldvault-backend/internal/domain/vault"
	"github.com/yungbote/yieldvault-backend/internal/platform/logger"
)

// Balance is one account's holding of one asset.
type Balance struct {
	Asset     string       `gorm:"column:asset;primaryKey" json:"asset"`
	Account   string       `gorm:"column:account;primaryKey" json:"account"`
	Amount    vault.Amount `gorm:"column:amount;type:text;not null" json:"amount"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Balance) TableName() string { return "asset_balances" }

type AllowanceRow struct {
	Asset     string       `gorm:"column:asset;primaryKey" json:"asset"`
	Owner     string       `gorm:"column:owner;primaryKey" json:"owner"`
	Spender   string       `gorm:"column:spender;primaryKey" json:"spender"`
	Amount    vault.Amount `gorm:"column:amount;type:text;not null" json:"amount"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (AllowanceRow) TableName() string { return "asset_allowances" }

// LedgerToken persists balances in the service database. Used by the dev
// server where custody accounts must survive restarts.
type LedgerToken struct {
	symbol string
	db     *gorm.DB
	log    *logger.Logger
}

var (
	_ Token  = (*LedgerToken)(nil)
	_ Minter = (*LedgerToken)(nil)
)

func NewLedgerToken(db *gorm.DB, symbol string, baseLog *logger.Logger) *LedgerToken {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return &LedgerToken{symbol: symbol, db: db, log: baseLog.With("token", symbol)}
}

func (t *LedgerToken) Symbol() string { return t.symbol }

func (t *LedgerToken) BalanceOf(ctx context.Context, account string) (vault.Amount, error) {
	return t.balance(t.db.WithContext(ctx), account, false)
}

func (t *LedgerToken) Mint(ctx context.Context, account string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		have, err := t.balance(tx, account, true)
		if err != nil {
			return err
		}
		return t.setBalance(tx, account, have.Add(amount))
	})
}

func (t *LedgerToken) Transfer(ctx context.Context, from, to string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return t.move(tx, from, to, amount)
	})
}

func (t *LedgerToken) TransferFrom(ctx context.Context, spender, owner, to string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row AllowanceRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("asset = ? AND owner = ? AND spender = ?", t.symbol, owner, spender).
			First(&row).Error
		allowed := vault.Zero
		switch {
		case err == nil:
			allowed = row.Amount
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if allowed.LessThan(amount) {
			return fmt.Errorf("%w: %s allows %s to spend %s, need %s", ErrInsufficientAllowance, owner, spender, allowed, amount)
		}
		if err := t.move(tx, owner, to, amount); err != nil {
			return err
		}
		return t.setAllowance(tx, owner, spender, allowed.Sub(amount))
	})
}

func (t *LedgerToken) Approve(ctx context.Context, owner, spender string, amount vault.Amount) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return t.setAllowance(t.db.WithContext(ctx), owner, spender, amount)
}

func (t *LedgerToken) Allowance(ctx context.Context, owner, spender string) (vault.Amount, error) {
	var row AllowanceRow
	err := t.db.WithContext(ctx).
		Where("asset = ? AND owner = ? AND spender = ?", t.symbol, owner, spender).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return vault.Zero, nil
	}
	if err != nil {
		return vault.Zero, err
	}
	return row.Amount, nil
}

func (t *LedgerToken) move(tx *gorm.DB, from, to string, amount vault.Amount) error {
	have, err := t.balance(tx, from, true)
	if err != nil {
		return err
	}
	if have.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s %s, need %s", ErrInsufficientBalance, from, have, t.symbol, amount)
	}
	if from == to {
		return nil
	}
	dest, err := t.balance(tx, to, true)
	if err != nil {
		return err
	}
	if err := t.setBalance(tx, from, have.Sub(amount)); err != nil {
		return err
	}
	return t.setBalance(tx, to, dest.Add(amount))
}

func (t *LedgerToken) balance(tx *gorm.DB, account string, lock bool) (vault.Amount, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row Balance
	err := q.Where("asset = ? AND account = ?", t.symbol, account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return vault.Zero, nil
	}
	if err != nil {
		return vault.Zero, err
	}
	return row.Amount, nil
}

func (t *LedgerToken) setBalance(tx *gorm.DB, account string, amount vault.Amount) error {
	row := Balance{Asset: t.symbol, Account: account, Amount: amount, UpdatedAt: time.Now().UTC()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}, {Name: "account"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error
}

func (t *LedgerToken) setAllowance(tx *gorm.DB, owner, spender string, amount vault.Amount) error {
	row := AllowanceRow{Asset: t.symbol, Owner: owner, Spender: spender, Amount: amount, UpdatedAt: time.Now().UTC()}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset"}, {Name: "owner"}, {Name: "spender"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
	}).Create(&row).Error
}
