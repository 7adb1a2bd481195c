package ports

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
// Methods accepting pgx.Tx run inside an atomic unit.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// GetByIDForUpdate takes a row-level lock and MUST be called within a
// transaction; every balance decision re-reads the locked row.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
}

// TransactionRepository defines persistence operations for ledger entries.
// Rows are append-only; only status and completion time ever change, and only
// along the pending -> terminal state machine.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByExternalRef(ctx context.Context, externalRef string) (*domain.Transaction, error)
	GetByExternalRefForUpdate(ctx context.Context, tx pgx.Tx, externalRef string) (*domain.Transaction, error)
	MarkStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
}

// DBTransactor provides the atomic unit: fn runs inside a single database
// transaction that commits on nil return and rolls back on error, releasing
// the transaction resource on every exit path.
type DBTransactor interface {
	WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}
