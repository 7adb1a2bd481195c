package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memStore is shared in-memory state behind the repos. The transactor
// serializes every atomic unit on mu and restores a snapshot on error, which
// reproduces the commit/rollback and row-locking semantics the ledger relies
// on in PostgreSQL. Repo methods taking a pgx.Tx run inside WithinTx with mu
// already held and must not lock; the rest lock for themselves.
type memStore struct {
	mu           sync.Mutex
	users        map[uuid.UUID]*domain.User
	wallets      map[uuid.UUID]*domain.Wallet
	transactions map[uuid.UUID]*domain.Transaction
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[uuid.UUID]*domain.User),
		wallets:      make(map[uuid.UUID]*domain.Wallet),
		transactions: make(map[uuid.UUID]*domain.Transaction),
	}
}

func (s *memStore) snapshot() (map[uuid.UUID]*domain.Wallet, map[uuid.UUID]*domain.Transaction) {
	wallets := make(map[uuid.UUID]*domain.Wallet, len(s.wallets))
	for id, w := range s.wallets {
		cp := *w
		wallets[id] = &cp
	}
	transactions := make(map[uuid.UUID]*domain.Transaction, len(s.transactions))
	for id, t := range s.transactions {
		cp := *t
		transactions[id] = &cp
	}
	return wallets, transactions
}

// --- In-Memory User Repo ---

type inMemoryUserRepo struct {
	store *memStore
}

func (r *inMemoryUserRepo) Create(ctx context.Context, tx pgx.Tx, u *domain.User) error {
	for _, existing := range r.store.users {
		if existing.Email == u.Email {
			return apperror.ErrDuplicateEmail()
		}
	}
	r.store.users[u.ID] = u
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (r *inMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	store *memStore
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.store.wallets[w.ID] = w
	return nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, w := range r.store.wallets {
		if w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := r.store.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	w, ok := r.store.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found")
	}
	if balance < 0 {
		// Mirrors the CHECK constraint on the wallets table.
		return fmt.Errorf("balance constraint violated")
	}
	w.Balance = balance
	w.UpdatedAt = time.Now()
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	store *memStore
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	cp := *t
	r.store.transactions[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByExternalRef(ctx context.Context, externalRef string) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.findByExternalRef(externalRef), nil
}

func (r *inMemoryTransactionRepo) GetByExternalRefForUpdate(ctx context.Context, tx pgx.Tx, externalRef string) (*domain.Transaction, error) {
	return r.findByExternalRef(externalRef), nil
}

func (r *inMemoryTransactionRepo) findByExternalRef(externalRef string) *domain.Transaction {
	for _, t := range r.store.transactions {
		if t.ExternalRef != nil && *t.ExternalRef == externalRef {
			cp := *t
			return &cp
		}
	}
	return nil
}

func (r *inMemoryTransactionRepo) MarkStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	t, ok := r.store.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	now := time.Now()
	t.Status = status
	t.CompletedAt = &now
	return nil
}

func (r *inMemoryTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []domain.Transaction
	for _, t := range r.store.transactions {
		if (t.SenderWalletID != nil && *t.SenderWalletID == walletID) ||
			(t.ReceiverWalletID != nil && *t.ReceiverWalletID == walletID) {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor runs each atomic unit under the store mutex and rolls
// wallet and transaction state back to a snapshot when fn fails. failNext
// forces the unit to fail after fn succeeds, simulating a commit-time crash.
type inMemoryTransactor struct {
	store    *memStore
	failNext bool
}

func (t *inMemoryTransactor) WithinTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	wallets, transactions := t.store.snapshot()
	err := fn(&noopTx{})
	if err == nil && t.failNext {
		t.failNext = false
		err = fmt.Errorf("simulated commit failure")
	}
	if err != nil {
		t.store.wallets = wallets
		t.store.transactions = transactions
		return err
	}
	return nil
}

// --- Fake Payment Gateway ---

// fakeGateway implements ports.PaymentGateway without network calls. Charges
// are auto-approved; captureStatus can be overridden to simulate declines.
// Each order can be captured at the provider only once; like the real
// adapter, a repeat capture of an already captured order reports COMPLETED
// instead of failing, so a caller that crashed after capturing can recover.
type fakeGateway struct {
	mu            sync.Mutex
	seq           int
	captureStatus string
	failCreate    bool
	created       map[string]int64 // externalRef -> amount
	captured      map[string]bool
	captureCalls  map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		captureStatus: "COMPLETED",
		created:       make(map[string]int64),
		captured:      make(map[string]bool),
		captureCalls:  make(map[string]int),
	}
}

func (g *fakeGateway) CreateCharge(ctx context.Context, amount int64, returnURL, cancelURL string) (*ports.ChargeIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return nil, apperror.ErrGateway(fmt.Errorf("provider unavailable"))
	}
	g.seq++
	ref := fmt.Sprintf("ORDER-%04d", g.seq)
	g.created[ref] = amount
	return &ports.ChargeIntent{
		ExternalRef: ref,
		ApprovalURL: "https://provider.example/approve/" + ref,
	}, nil
}

func (g *fakeGateway) CaptureCharge(ctx context.Context, externalRef string) (*ports.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.created[externalRef]
	if !ok {
		return nil, apperror.ErrGateway(fmt.Errorf("unknown order %s", externalRef))
	}
	g.captureCalls[externalRef]++
	if g.captured[externalRef] {
		return &ports.CaptureResult{Status: "COMPLETED"}, nil
	}
	if g.captureStatus != "COMPLETED" {
		return &ports.CaptureResult{Status: g.captureStatus}, nil
	}
	g.captured[externalRef] = true
	return &ports.CaptureResult{Status: "COMPLETED", Amount: amount}, nil
}

func (g *fakeGateway) captureCount(externalRef string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captureCalls[externalRef]
}

func (g *fakeGateway) ParseWebhook(payload []byte) (*ports.WebhookEvent, error) {
	return nil, apperror.ErrInvalidWebhook()
}

func (g *fakeGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return signature == "valid"
}

// --- No-op Confirmation Cache ---

type noopCache struct{}

func (noopCache) Get(ctx context.Context, externalRef string) ([]byte, error) {
	return nil, nil
}

func (noopCache) Set(ctx context.Context, externalRef string, value []byte, ttl time.Duration) error {
	return nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
