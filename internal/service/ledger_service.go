package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// confirmationTTL bounds how long a confirmed deposit is answerable from
// cache before duplicate webhooks fall through to the store.
const confirmationTTL = 24 * time.Hour

// LedgerService is the transaction engine. It is the only component that
// mutates wallet balances or advances transaction records, and every mutation
// happens inside a single committed store transaction. Gateway calls are made
// outside atomic units, never while holding a wallet lock.
type LedgerService struct {
	walletRepo ports.WalletRepository
	txnRepo    ports.TransactionRepository
	transactor ports.DBTransactor
	gateway    ports.PaymentGateway
	cache      ports.ConfirmationCache
	log        zerolog.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txnRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	gateway ports.PaymentGateway,
	cache ports.ConfirmationCache,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		walletRepo: walletRepo,
		txnRepo:    txnRepo,
		transactor: transactor,
		gateway:    gateway,
		cache:      cache,
		log:        log,
	}
}

// InitiateDeposit creates a provider charge and records a pending deposit
// keyed by the provider correlation id. The wallet balance is untouched; if
// the gateway call fails no ledger entry is written at all.
func (s *LedgerService) InitiateDeposit(ctx context.Context, req ports.DepositRequest) (*ports.DepositIntent, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	intent, err := s.gateway.CreateCharge(ctx, req.Amount, req.ReturnURL, req.CancelURL)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:               uuid.New(),
		ReceiverWalletID: &wallet.ID,
		Amount:           req.Amount,
		Type:             domain.TransactionTypeDeposit,
		Status:           domain.TransactionStatusPending,
		ExternalRef:      &intent.ExternalRef,
		CreatedAt:        time.Now(),
	}

	err = s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		return s.txnRepo.Create(ctx, tx, txn)
	})
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	s.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("external_ref", intent.ExternalRef).
		Int64("amount", req.Amount).
		Msg("deposit initiated")

	return &ports.DepositIntent{
		TransactionID: txn.ID,
		ExternalRef:   intent.ExternalRef,
		ApprovalURL:   intent.ApprovalURL,
	}, nil
}

// CaptureDeposit captures the provider charge for a pending deposit, then
// confirms it. This is the buyer redirect path; webhook deliveries call
// ConfirmDeposit directly because their event means the provider has already
// captured. If a previous attempt captured but crashed before the ledger
// commit, the gateway reports the order as already captured and the retry
// still credits, so the captured money is never stranded.
func (s *LedgerService) CaptureDeposit(ctx context.Context, externalRef string) (*domain.Transaction, error) {
	if cached := s.cachedConfirmation(ctx, externalRef); cached != nil {
		return cached, nil
	}

	existing, err := s.txnRepo.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if existing == nil {
		return nil, apperror.ErrUnknownTransaction()
	}
	if existing.Status == domain.TransactionStatusCompleted {
		return existing, nil
	}
	if existing.IsTerminal() {
		return nil, apperror.ErrAlreadyFinalized()
	}

	capture, err := s.gateway.CaptureCharge(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	if capture.Status != "COMPLETED" {
		return nil, apperror.ErrCaptureIncomplete(capture.Status)
	}
	// Credit only what was recorded at initiation. A provider reporting a
	// different captured amount is a reconciliation problem, not a credit.
	if capture.Amount != 0 && capture.Amount != existing.Amount {
		return nil, apperror.ErrGateway(fmt.Errorf(
			"captured amount %d does not match recorded amount %d for %s",
			capture.Amount, existing.Amount, externalRef))
	}

	return s.creditDeposit(ctx, externalRef)
}

// ConfirmDeposit finalizes a pending deposit identified by its provider
// correlation id. This is a pure ledger operation: the provider is not
// contacted, so it is safe to drive from webhook deliveries where the charge
// is already captured. The credit and the status flip to completed happen in
// one atomic unit. Replays of an already completed reference return the
// recorded transaction unchanged, so confirming N times credits exactly once.
func (s *LedgerService) ConfirmDeposit(ctx context.Context, externalRef string) (*domain.Transaction, error) {
	if cached := s.cachedConfirmation(ctx, externalRef); cached != nil {
		return cached, nil
	}

	existing, err := s.txnRepo.GetByExternalRef(ctx, externalRef)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if existing == nil {
		return nil, apperror.ErrUnknownTransaction()
	}
	if existing.Status == domain.TransactionStatusCompleted {
		return existing, nil
	}
	if existing.IsTerminal() {
		return nil, apperror.ErrAlreadyFinalized()
	}

	return s.creditDeposit(ctx, externalRef)
}

// creditDeposit credits the receiving wallet and flips the row to completed in
// one atomic unit, re-checking the status under the row lock.
func (s *LedgerService) creditDeposit(ctx context.Context, externalRef string) (*domain.Transaction, error) {
	var confirmed *domain.Transaction
	err := s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		txn, err := s.txnRepo.GetByExternalRefForUpdate(ctx, tx, externalRef)
		if err != nil {
			return err
		}
		if txn == nil {
			return apperror.ErrUnknownTransaction()
		}
		// Re-check under lock: a concurrent confirm may have won the race.
		if txn.Status == domain.TransactionStatusCompleted {
			confirmed = txn
			return nil
		}
		if !txn.CanTransitionTo(domain.TransactionStatusCompleted) {
			return apperror.ErrAlreadyFinalized()
		}

		wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, *txn.ReceiverWalletID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return apperror.ErrNotFound("wallet")
		}

		if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, wallet.Balance+txn.Amount); err != nil {
			return err
		}
		if err := s.txnRepo.MarkStatus(ctx, tx, txn.ID, domain.TransactionStatusCompleted); err != nil {
			return err
		}

		now := time.Now()
		txn.Status = domain.TransactionStatusCompleted
		txn.CompletedAt = &now
		confirmed = txn
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err)
	}

	s.storeConfirmation(ctx, externalRef, confirmed)

	s.log.Info().
		Str("transaction_id", confirmed.ID.String()).
		Str("external_ref", externalRef).
		Int64("amount", confirmed.Amount).
		Msg("deposit confirmed")

	return confirmed, nil
}

// CancelDeposit marks a pending deposit as cancelled. The wallet was never
// credited, so no balance movement happens. Cancelling a non-pending
// transaction is rejected rather than silently ignored.
func (s *LedgerService) CancelDeposit(ctx context.Context, externalRef string) (*domain.Transaction, error) {
	var cancelled *domain.Transaction
	err := s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		txn, err := s.txnRepo.GetByExternalRefForUpdate(ctx, tx, externalRef)
		if err != nil {
			return err
		}
		if txn == nil {
			return apperror.ErrUnknownTransaction()
		}
		if !txn.CanTransitionTo(domain.TransactionStatusCancelled) {
			return apperror.ErrAlreadyFinalized()
		}

		if err := s.txnRepo.MarkStatus(ctx, tx, txn.ID, domain.TransactionStatusCancelled); err != nil {
			return err
		}

		now := time.Now()
		txn.Status = domain.TransactionStatusCancelled
		txn.CompletedAt = &now
		cancelled = txn
		return nil
	})
	if err != nil {
		return nil, wrapInternal(err)
	}

	s.log.Info().
		Str("transaction_id", cancelled.ID.String()).
		Str("external_ref", externalRef).
		Msg("deposit cancelled")

	return cancelled, nil
}

// TransferP2P atomically moves funds between two wallets. Both wallet rows
// are locked in ascending wallet-id order so two opposing transfers cannot
// deadlock, the sender balance is checked under lock, and the debit, credit
// and completed ledger entry commit together or not at all.
func (s *LedgerService) TransferP2P(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.SenderUserID == req.ReceiverUserID {
		return nil, apperror.ErrSelfTransfer()
	}

	senderWallet, err := s.walletRepo.GetByUserID(ctx, req.SenderUserID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if senderWallet == nil {
		return nil, apperror.ErrNotFound("sender wallet")
	}
	receiverWallet, err := s.walletRepo.GetByUserID(ctx, req.ReceiverUserID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if receiverWallet == nil {
		return nil, apperror.ErrNotFound("receiver wallet")
	}
	if senderWallet.ID == receiverWallet.ID {
		return nil, apperror.ErrSelfTransfer()
	}

	var txn *domain.Transaction
	err = s.transactor.WithinTx(ctx, func(tx pgx.Tx) error {
		first, second := lockOrder(senderWallet.ID, receiverWallet.ID)

		lockedFirst, err := s.walletRepo.GetByIDForUpdate(ctx, tx, first)
		if err != nil {
			return err
		}
		lockedSecond, err := s.walletRepo.GetByIDForUpdate(ctx, tx, second)
		if err != nil {
			return err
		}
		if lockedFirst == nil || lockedSecond == nil {
			return apperror.ErrNotFound("wallet")
		}

		sender, receiver := lockedFirst, lockedSecond
		if sender.ID != senderWallet.ID {
			sender, receiver = lockedSecond, lockedFirst
		}

		if sender.Balance < req.Amount {
			return apperror.ErrInsufficientFunds()
		}

		if err := s.walletRepo.UpdateBalance(ctx, tx, sender.ID, sender.Balance-req.Amount); err != nil {
			return err
		}
		if err := s.walletRepo.UpdateBalance(ctx, tx, receiver.ID, receiver.Balance+req.Amount); err != nil {
			return err
		}

		now := time.Now()
		txn = &domain.Transaction{
			ID:               uuid.New(),
			SenderWalletID:   &sender.ID,
			ReceiverWalletID: &receiver.ID,
			Amount:           req.Amount,
			Type:             domain.TransactionTypeP2P,
			Status:           domain.TransactionStatusCompleted,
			CreatedAt:        now,
			CompletedAt:      &now,
		}
		return s.txnRepo.Create(ctx, tx, txn)
	})
	if err != nil {
		return nil, wrapInternal(err)
	}

	s.log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("sender_wallet", senderWallet.ID.String()).
		Str("receiver_wallet", receiverWallet.ID.String()).
		Int64("amount", req.Amount).
		Msg("p2p transfer completed")

	return txn, nil
}

// GetHistory returns every transaction touching the user's wallet, newest
// first. Pending and failed entries are included; their balance effect is
// zero.
func (s *LedgerService) GetHistory(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	txns, err := s.txnRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return txns, nil
}

// GetBalance returns the user's current wallet balance in minor units.
func (s *LedgerService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, apperror.InternalError(err)
	}
	if wallet == nil {
		return 0, apperror.ErrNotFound("wallet")
	}
	return wallet.Balance, nil
}

// cachedConfirmation answers a duplicate confirm from the cache, or nil on
// any miss or decode problem. Cache failures are logged and ignored.
func (s *LedgerService) cachedConfirmation(ctx context.Context, externalRef string) *domain.Transaction {
	raw, err := s.cache.Get(ctx, externalRef)
	if err != nil {
		s.log.Warn().Err(err).Str("external_ref", externalRef).Msg("confirmation cache read failed")
		return nil
	}
	if raw == nil {
		return nil
	}
	var txn domain.Transaction
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&txn); err != nil {
		s.log.Warn().Err(err).Str("external_ref", externalRef).Msg("confirmation cache entry malformed")
		return nil
	}
	return &txn
}

// storeConfirmation caches a completed deposit, best effort.
func (s *LedgerService) storeConfirmation(ctx context.Context, externalRef string, txn *domain.Transaction) {
	raw, err := json.Marshal(txn)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, externalRef, raw, confirmationTTL); err != nil {
		s.log.Warn().Err(err).Str("external_ref", externalRef).Msg("confirmation cache write failed")
	}
}

// lockOrder returns the two wallet ids in ascending byte order. All
// multi-wallet operations acquire row locks in this order.
func lockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

// wrapInternal passes AppErrors through and wraps anything else as internal.
func wrapInternal(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.InternalError(err)
}
