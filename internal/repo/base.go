package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/juspay/hyperswitch-sub035/pkg/db"
)

// Base provides a shared foundation for domain repositories. It resolves the
// connection from the provider on every call unless bound to a transaction.
type Base struct {
	provider db.Provider
	tx       *gorm.DB
}

// NewBase constructs a Base repository backed by the provided connection source.
func NewBase(provider db.Provider) Base {
	return Base{provider: provider}
}

// WithTx returns a copy bound to tx. A nil tx returns the receiver unchanged.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{provider: b.provider, tx: tx}
}

// InTx reports whether the base is bound to a transaction.
func (b Base) InTx() bool {
	return b.tx != nil
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	conn := b.tx
	if conn == nil {
		conn = b.provider.DB()
	}
	if ctx == nil {
		return conn
	}
	return conn.WithContext(ctx)
}

// Transaction runs fn in the bound transaction, or opens a new one.
func (b Base) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if b.tx != nil {
		return fn(b.tx.WithContext(ctx))
	}
	return b.provider.WithTx(ctx, fn)
}
