package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"p2p-market/internal/models"
	"p2p-market/internal/repository"
	"p2p-market/internal/syncutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeService owns the P2P trade lifecycle. Every state transition runs
// under a per-trade keyed lock and inside a single database transaction:
// read current state, validate, mutate at most one balance, write the new
// state, append one system message. Either the whole unit commits or none
// of it does.
//
// Locking convention: the token side of a trade is debited from the selling
// party at the earliest point that party is committed. A SELL listing locks
// the poster's tokens at creation; a BUY listing locks the acceptor's tokens
// at acceptance. LockedUserID on the trade row tracks who holds the debit;
// it is cleared exactly once, by the transfer on completion or by a refund.
type TradeService struct {
	db               *gorm.DB
	repo             *repository.Repository
	locks            *syncutil.KeyedMutex
	referral         *ReferralService
	defaultTimeLimit int
	now              func() time.Time
}

func NewTradeService(db *gorm.DB, repo *repository.Repository, referral *ReferralService, defaultTimeLimitMin int) *TradeService {
	if defaultTimeLimitMin <= 0 {
		defaultTimeLimitMin = 30
	}
	return &TradeService{
		db:               db,
		repo:             repo,
		locks:            syncutil.NewKeyedMutex(),
		referral:         referral,
		defaultTimeLimit: defaultTimeLimitMin,
		now:              time.Now,
	}
}

// transition serializes and atomically applies a state change to one trade.
// fn sees the freshly loaded trade and the open transaction; any error rolls
// the whole unit back.
func (s *TradeService) transition(
	ctx context.Context,
	tradeID uuid.UUID,
	fn func(tx *gorm.DB, trade *models.Trade) error,
) (*models.Trade, error) {
	unlock, err := s.locks.Lock(ctx, tradeID.String())
	if err != nil {
		return nil, newConflict("trade is busy, please refresh and try again")
	}
	defer unlock()

	var trade models.Trade
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", tradeID).First(&trade).Error; err != nil {
			return err
		}
		return fn(tx, &trade)
	})
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// CreateTrade posts a new listing. A SELL listing locks the poster's tokens
// immediately; a BUY listing locks nothing until someone accepts.
func (s *TradeService) CreateTrade(
	ctx context.Context,
	userID uint,
	req *models.CreateTradeRequest,
) (*models.Trade, error) {
	if req.Kind != models.TradeKindSell && req.Kind != models.TradeKindBuy {
		return nil, newValidation("kind", "must be SELL or BUY")
	}
	if !req.Amount.IsPositive() {
		return nil, newValidation("amount", "must be greater than zero")
	}
	if !req.UnitPrice.IsPositive() {
		return nil, newValidation("unit_price", "must be greater than zero")
	}
	if req.TimeLimitMinutes == 0 {
		req.TimeLimitMinutes = s.defaultTimeLimit
	}

	trade := &models.Trade{
		ID:               uuid.New(),
		Kind:             req.Kind,
		SellerID:         userID,
		Amount:           req.Amount,
		UnitPrice:        req.UnitPrice,
		Total:            req.Amount.Mul(req.UnitPrice),
		PaymentMethod:    req.PaymentMethod,
		PaymentDetails:   req.PaymentDetails,
		Terms:            req.Terms,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Status:           models.TradeStatusActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		if !user.KYCVerified {
			return newForbidden("KYC verification required before trading")
		}

		if req.Kind == models.TradeKindSell {
			if err := s.lockFunds(tx, trade, userID); err != nil {
				return err
			}
		}

		if err := tx.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to create trade: %w", err)
		}

		return s.appendSystemMessage(tx, trade.ID,
			fmt.Sprintf("%s listing created for %s tokens at %s each", trade.Kind, trade.Amount, trade.UnitPrice))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Trade %s created by user %d (%s %s @ %s)", trade.ID, userID, trade.Kind, trade.Amount, trade.UnitPrice)
	return trade, nil
}

// AcceptTrade lets a counterparty take an ACTIVE listing, moving it to
// PROCESSING and starting the payment window. For a BUY listing the
// acceptor is the token seller, so their tokens are locked here.
func (s *TradeService) AcceptTrade(ctx context.Context, tradeID uuid.UUID, userID uint) (*models.Trade, error) {
	return s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusActive {
			return newPrecondition("trade is no longer available, current status: %s", trade.Status)
		}
		if trade.SellerID == userID {
			return newPrecondition("cannot accept your own trade")
		}

		var user models.User
		if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		if !user.KYCVerified {
			return newForbidden("KYC verification required before trading")
		}

		if trade.Kind == models.TradeKindBuy {
			if err := s.lockFunds(tx, trade, userID); err != nil {
				return err
			}
		}

		now := s.now()
		expiresAt := now.Add(time.Duration(trade.TimeLimitMinutes) * time.Minute)
		trade.BuyerID = &userID
		trade.Status = models.TradeStatusProcessing
		trade.ExpiresAt = &expiresAt

		if err := tx.Save(trade).Error; err != nil {
			return fmt.Errorf("failed to update trade: %w", err)
		}

		return s.appendSystemMessage(tx, trade.ID,
			fmt.Sprintf("trade accepted, payment window open until %s", expiresAt.Format(time.RFC3339)))
	})
}

// UploadProof attaches a payment proof to a PROCESSING trade.
func (s *TradeService) UploadProof(
	ctx context.Context,
	tradeID uuid.UUID,
	userID uint,
	filePath, description string,
) (*models.TradeProof, error) {
	var proof *models.TradeProof
	_, err := s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing {
			return newPrecondition("proofs can only be uploaded while processing, current status: %s", trade.Status)
		}
		if !isParticipant(trade, userID) {
			return newForbidden("only trade participants can upload proofs")
		}

		proof = &models.TradeProof{
			ID:           uuid.New(),
			TradeID:      trade.ID,
			UploadedByID: userID,
			Kind:         "payment_proof",
			FilePath:     filePath,
			Description:  description,
		}
		if err := tx.Create(proof).Error; err != nil {
			return fmt.Errorf("failed to save proof: %w", err)
		}

		return s.appendSystemMessage(tx, trade.ID, fmt.Sprintf("payment proof uploaded by user %d", userID))
	})
	if err != nil {
		return nil, err
	}
	return proof, nil
}

// MarkPaid records that the cash side claims payment was sent. Requires at
// least one uploaded proof.
func (s *TradeService) MarkPaid(ctx context.Context, tradeID uuid.UUID, userID uint) (*models.Trade, error) {
	return s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing {
			return newPrecondition("trade is not processing, current status: %s", trade.Status)
		}
		if payer := cashPayerID(trade); payer == nil || *payer != userID {
			return newForbidden("only the paying party can mark payment sent")
		}
		if trade.PaidAt != nil {
			return newPrecondition("payment already marked as sent")
		}

		var proofs int64
		if err := tx.Model(&models.TradeProof{}).Where("trade_id = ?", trade.ID).Count(&proofs).Error; err != nil {
			return err
		}
		if proofs == 0 {
			return newPrecondition("a payment proof must be uploaded before marking paid")
		}

		now := s.now()
		trade.PaidAt = &now
		if err := tx.Save(trade).Error; err != nil {
			return fmt.Errorf("failed to update trade: %w", err)
		}

		return s.appendSystemMessage(tx, trade.ID, "payment marked as sent")
	})
}

// ConfirmPayment completes the trade: the party receiving cash confirms it
// arrived, and the locked tokens transfer to the token buyer.
func (s *TradeService) ConfirmPayment(ctx context.Context, tradeID uuid.UUID, userID uint) (*models.Trade, error) {
	trade, err := s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing {
			return newPrecondition("trade is not processing, current status: %s", trade.Status)
		}
		if receiver := cashReceiverID(trade); receiver == nil || *receiver != userID {
			return newForbidden("only the party receiving payment can confirm it")
		}
		if trade.PaidAt == nil {
			return newPrecondition("payment has not been marked as sent")
		}

		return s.completeTrade(tx, trade, "payment confirmed, tokens released")
	})
	if err != nil {
		return nil, err
	}

	s.payReferralRebates(trade)
	return trade, nil
}

// RejectPayment disputes a claimed payment. For a BUY trade the acceptor's
// locked tokens are refunded immediately; for a SELL trade the lock stays
// in place pending dispute resolution.
func (s *TradeService) RejectPayment(
	ctx context.Context,
	tradeID uuid.UUID,
	userID uint,
	reason string,
) (*models.Trade, error) {
	return s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing {
			return newPrecondition("trade is not processing, current status: %s", trade.Status)
		}
		if receiver := cashReceiverID(trade); receiver == nil || *receiver != userID {
			return newForbidden("only the party receiving payment can reject it")
		}
		if trade.PaidAt == nil {
			return newPrecondition("payment has not been marked as sent")
		}

		if trade.Kind == models.TradeKindBuy {
			if err := s.refundLock(tx, trade, "payment rejected"); err != nil {
				return err
			}
		}

		if err := s.openDisputeIfMissing(tx, trade, userID, reason, nil); err != nil {
			return err
		}

		trade.Status = models.TradeStatusDisputed
		if err := tx.Save(trade).Error; err != nil {
			return fmt.Errorf("failed to update trade: %w", err)
		}

		return s.appendSystemMessage(tx, trade.ID, fmt.Sprintf("payment rejected: %s", reason))
	})
}

// CancelTrade cancels a trade and refunds whichever side holds the lock.
// An ACTIVE listing can only be cancelled by its poster; a PROCESSING trade
// by either party.
func (s *TradeService) CancelTrade(
	ctx context.Context,
	tradeID uuid.UUID,
	userID uint,
	reason string,
) (*models.Trade, error) {
	return s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		switch trade.Status {
		case models.TradeStatusActive:
			if trade.SellerID != userID {
				return newForbidden("only the trade creator can cancel an open listing")
			}
		case models.TradeStatusProcessing:
			if !isParticipant(trade, userID) {
				return newForbidden("only trade participants can cancel")
			}
		default:
			return newPrecondition("trade can no longer be cancelled, current status: %s", trade.Status)
		}

		return s.cancelTrade(tx, trade, reason)
	})
}

// DeleteTrade removes an ACTIVE, unaccepted listing, refunding any locked
// balance first. Proofs and messages cascade with the trade row.
func (s *TradeService) DeleteTrade(ctx context.Context, tradeID uuid.UUID, userID uint) error {
	_, err := s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusActive {
			return newPrecondition("only open listings can be deleted, current status: %s", trade.Status)
		}
		if trade.BuyerID != nil {
			return newPrecondition("accepted trades cannot be deleted")
		}
		if trade.SellerID != userID {
			return newForbidden("only the trade creator can delete a listing")
		}

		if err := s.refundLock(tx, trade, "listing deleted"); err != nil {
			return err
		}

		if err := tx.Where("trade_id = ?", trade.ID).Delete(&models.TradeProof{}).Error; err != nil {
			return err
		}
		if err := tx.Where("trade_id = ?", trade.ID).Delete(&models.TradeMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(trade).Error; err != nil {
			return fmt.Errorf("failed to delete trade: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Trade %s deleted by user %d", tradeID, userID)
	return nil
}

// RaiseDispute opens a dispute on a PROCESSING trade. Tokens stay locked;
// only an admin resolution moves the trade further.
func (s *TradeService) RaiseDispute(
	ctx context.Context,
	tradeID uuid.UUID,
	userID uint,
	reason string,
	evidence models.JSONB,
) (*models.Trade, error) {
	return s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing {
			return newPrecondition("disputes can only be raised while processing, current status: %s", trade.Status)
		}
		if !isParticipant(trade, userID) {
			return newForbidden("only trade participants can raise a dispute")
		}

		var existing int64
		if err := tx.Model(&models.Dispute{}).Where("trade_id = ?", trade.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return newPrecondition("a dispute already exists for this trade")
		}

		dispute := &models.Dispute{
			ID:         uuid.New(),
			TradeID:    trade.ID,
			RaisedByID: userID,
			Reason:     reason,
			Evidence:   evidence,
			Status:     models.DisputeStatusOpen,
		}
		if err := tx.Create(dispute).Error; err != nil {
			return fmt.Errorf("failed to create dispute: %w", err)
		}

		trade.Status = models.TradeStatusDisputed
		if err := tx.Save(trade).Error; err != nil {
			return fmt.Errorf("failed to update trade: %w", err)
		}

		return s.appendSystemMessage(tx, trade.ID, fmt.Sprintf("dispute raised by user %d: %s", userID, reason))
	})
}

// UpdatePaymentDetails edits a trade's payment details while PROCESSING.
// Either party may edit; there is no versioning.
func (s *TradeService) UpdatePaymentDetails(
	ctx context.Context,
	tradeID uuid.UUID,
	userID uint,
	details string,
) (*models.Trade, error) {
	return s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing {
			return newPrecondition("payment details can only be edited while processing, current status: %s", trade.Status)
		}
		if !isParticipant(trade, userID) {
			return newForbidden("only trade participants can edit payment details")
		}

		trade.PaymentDetails = details
		if err := tx.Save(trade).Error; err != nil {
			return fmt.Errorf("failed to update trade: %w", err)
		}

		return s.appendSystemMessage(tx, trade.ID, fmt.Sprintf("payment details updated by user %d", userID))
	})
}

// AddMessage posts a chat message from a participant to the trade log.
func (s *TradeService) AddMessage(
	ctx context.Context,
	tradeID uuid.UUID,
	userID uint,
	body string,
) (*models.TradeMessage, error) {
	trade, err := s.repo.GetTradeByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(trade, userID) {
		return nil, newForbidden("only trade participants can post messages")
	}

	msg := &models.TradeMessage{
		ID:      uuid.New(),
		TradeID: tradeID,
		Body:    body,
	}
	msg.SenderID = &userID

	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

// GetTradeByID retrieves a trade by ID
func (s *TradeService) GetTradeByID(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error) {
	return s.repo.GetTradeByID(ctx, tradeID)
}

// ===========================================================================
// Shared transition pieces
// ===========================================================================

// completeTrade transfers the locked tokens to the token buyer and marks the
// trade COMPLETED. Callers must have validated who may trigger it.
func (s *TradeService) completeTrade(tx *gorm.DB, trade *models.Trade, note string) error {
	buyer := tokenBuyerID(trade)
	if buyer == nil {
		return newPrecondition("trade has no counterparty")
	}
	if err := s.settleLock(tx, trade, *buyer); err != nil {
		return err
	}

	now := s.now()
	trade.Status = models.TradeStatusCompleted
	trade.CompletedAt = &now
	if err := tx.Save(trade).Error; err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}

	return s.appendSystemMessage(tx, trade.ID, note)
}

// cancelTrade refunds any held lock and marks the trade CANCELLED.
func (s *TradeService) cancelTrade(tx *gorm.DB, trade *models.Trade, reason string) error {
	if err := s.refundLock(tx, trade, "trade cancelled"); err != nil {
		return err
	}

	now := s.now()
	trade.Status = models.TradeStatusCancelled
	trade.CancelledAt = &now
	trade.CancellationReason = reason
	if err := tx.Save(trade).Error; err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}

	return s.appendSystemMessage(tx, trade.ID, fmt.Sprintf("trade cancelled: %s", reason))
}

// lockFunds debits amount from userID and records the hold on the trade.
// The debit is guarded so a balance can never go negative.
func (s *TradeService) lockFunds(tx *gorm.DB, trade *models.Trade, userID uint) error {
	res := tx.Model(&models.User{}).
		Where("id = ? AND token_balance >= ?", userID, trade.Amount).
		Update("token_balance", gorm.Expr("token_balance - ?", trade.Amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return newPrecondition("insufficient token balance")
	}

	trade.LockedAmount = trade.Amount
	trade.LockedUserID = &userID

	return s.recordBalanceEntry(tx, userID, trade.ID, models.BalanceEntryTypeLock, trade.Amount.Neg(), "tokens locked for trade")
}

// refundLock credits the held amount back to its holder, once. A trade with
// no held lock refunds nothing.
func (s *TradeService) refundLock(tx *gorm.DB, trade *models.Trade, note string) error {
	if trade.LockedUserID == nil {
		return nil
	}

	holder := *trade.LockedUserID
	amount := trade.LockedAmount
	if err := creditBalance(tx, holder, amount); err != nil {
		return err
	}
	if err := s.recordBalanceEntry(tx, holder, trade.ID, models.BalanceEntryTypeRefund, amount, note); err != nil {
		return err
	}

	trade.LockedAmount = decimal.Zero
	trade.LockedUserID = nil
	return nil
}

// settleLock transfers the held amount to toUserID. The transfer is the
// counterpart of the lock debit, not an additional debit.
func (s *TradeService) settleLock(tx *gorm.DB, trade *models.Trade, toUserID uint) error {
	if trade.LockedUserID == nil {
		return newPrecondition("trade holds no locked funds")
	}

	amount := trade.LockedAmount
	if err := creditBalance(tx, toUserID, amount); err != nil {
		return err
	}
	if err := s.recordBalanceEntry(tx, toUserID, trade.ID, models.BalanceEntryTypeTransfer, amount, "tokens received from trade"); err != nil {
		return err
	}

	trade.LockedAmount = decimal.Zero
	trade.LockedUserID = nil
	return nil
}

func (s *TradeService) openDisputeIfMissing(
	tx *gorm.DB,
	trade *models.Trade,
	userID uint,
	reason string,
	evidence models.JSONB,
) error {
	var existing int64
	if err := tx.Model(&models.Dispute{}).Where("trade_id = ?", trade.ID).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	dispute := &models.Dispute{
		ID:         uuid.New(),
		TradeID:    trade.ID,
		RaisedByID: userID,
		Reason:     reason,
		Evidence:   evidence,
		Status:     models.DisputeStatusOpen,
	}
	if err := tx.Create(dispute).Error; err != nil {
		return fmt.Errorf("failed to create dispute: %w", err)
	}
	return nil
}

func (s *TradeService) appendSystemMessage(tx *gorm.DB, tradeID uuid.UUID, body string) error {
	msg := &models.TradeMessage{
		ID:       uuid.New(),
		TradeID:  tradeID,
		Body:     body,
		IsSystem: true,
	}
	if err := tx.Create(msg).Error; err != nil {
		return fmt.Errorf("failed to append system message: %w", err)
	}
	return nil
}

func (s *TradeService) recordBalanceEntry(
	tx *gorm.DB,
	userID uint,
	tradeID uuid.UUID,
	entryType models.BalanceEntryType,
	amount decimal.Decimal,
	note string,
) error {
	entry := &models.BalanceEntry{
		ID:        uuid.New(),
		UserID:    userID,
		TradeID:   &tradeID,
		EntryType: entryType,
		Amount:    amount,
		Note:      note,
	}
	return tx.Create(entry).Error
}

// payReferralRebates credits referral rewards after a completed trade.
// Failures are logged, never surfaced: the trade itself already committed.
func (s *TradeService) payReferralRebates(trade *models.Trade) {
	if s.referral == nil || trade == nil {
		return
	}

	parties := []uint{trade.SellerID}
	if trade.BuyerID != nil {
		parties = append(parties, *trade.BuyerID)
	}
	for _, userID := range parties {
		if err := s.referral.ProcessTradeRebate(trade.ID, userID, trade.Total); err != nil {
			log.Printf("Warning: rebate processing failed for trade %s user %d: %v", trade.ID, userID, err)
		}
	}
}

func creditBalance(tx *gorm.DB, userID uint, amount decimal.Decimal) error {
	return tx.Model(&models.User{}).Where("id = ?", userID).
		Update("token_balance", gorm.Expr("token_balance + ?", amount)).Error
}

func isParticipant(trade *models.Trade, userID uint) bool {
	if trade.SellerID == userID {
		return true
	}
	return trade.BuyerID != nil && *trade.BuyerID == userID
}

// tokenBuyerID is the side that receives tokens: the acceptor of a SELL
// listing, or the poster of a BUY listing.
func tokenBuyerID(trade *models.Trade) *uint {
	if trade.Kind == models.TradeKindSell {
		return trade.BuyerID
	}
	return &trade.SellerID
}

// cashPayerID pays off-platform cash, which is always the token buyer side.
func cashPayerID(trade *models.Trade) *uint {
	return tokenBuyerID(trade)
}

// cashReceiverID is the token seller side: the poster of a SELL listing, or
// the acceptor of a BUY listing.
func cashReceiverID(trade *models.Trade) *uint {
	if trade.Kind == models.TradeKindSell {
		return &trade.SellerID
	}
	return trade.BuyerID
}
