package services

import (
	"context"
	"fmt"
	"log"

	"p2p-market/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Admin overrides. These run through the same locked transition path as
// user-facing operations, so a concurrent confirm or cancel can never
// interleave with an override.

// ForceComplete settles a PROCESSING or DISPUTED trade in favour of the
// token buyer. An open dispute on the trade is resolved alongside.
func (s *TradeService) ForceComplete(
	ctx context.Context,
	tradeID uuid.UUID,
	adminID uint,
	reason string,
) (*models.Trade, error) {
	trade, err := s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing && trade.Status != models.TradeStatusDisputed {
			return newPrecondition("trade cannot be force-completed, current status: %s", trade.Status)
		}
		if trade.BuyerID == nil {
			return newPrecondition("trade has no counterparty")
		}

		if err := s.resolveOpenDispute(tx, trade.ID, adminID, fmt.Sprintf("force-completed: %s", reason)); err != nil {
			return err
		}

		// A rejected payment refunds the hold before the trade reaches
		// DISPUTED. Settling in the buyer's favour then needs the tokens
		// locked again from the seller side; the guarded debit fails if
		// the seller has since spent them.
		if trade.LockedUserID == nil {
			seller := cashReceiverID(trade)
			if err := s.lockFunds(tx, trade, *seller); err != nil {
				return err
			}
		}

		return s.completeTrade(tx, trade, fmt.Sprintf("trade force-completed by admin: %s", reason))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Trade %s force-completed by admin %d", tradeID, adminID)
	s.payReferralRebates(trade)
	return trade, nil
}

// ForceCancel cancels an ACTIVE or PROCESSING trade, refunding any held
// lock. Disputed trades go through ResolveDispute instead.
func (s *TradeService) ForceCancel(
	ctx context.Context,
	tradeID uuid.UUID,
	adminID uint,
	reason string,
) (*models.Trade, error) {
	trade, err := s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusActive && trade.Status != models.TradeStatusProcessing {
			return newPrecondition("trade cannot be force-cancelled, current status: %s", trade.Status)
		}
		return s.cancelTrade(tx, trade, fmt.Sprintf("cancelled by admin: %s", reason))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Trade %s force-cancelled by admin %d", tradeID, adminID)
	return trade, nil
}

// ResolveDispute closes an open dispute and cancels the underlying trade,
// refunding the lock holder. Resolutions in favour of the token buyer go
// through ForceComplete, which also closes the dispute.
func (s *TradeService) ResolveDispute(
	ctx context.Context,
	disputeID uuid.UUID,
	adminID uint,
	resolution string,
) (*models.Dispute, error) {
	dispute, err := s.repo.GetDisputeByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	_, err = s.transition(ctx, dispute.TradeID, func(tx *gorm.DB, trade *models.Trade) error {
		// Reload under the trade lock; the lookup above raced unguarded.
		if err := tx.Where("id = ?", disputeID).First(dispute).Error; err != nil {
			return err
		}
		if dispute.Status != models.DisputeStatusOpen {
			return newPrecondition("dispute is already resolved")
		}
		if trade.Status != models.TradeStatusDisputed {
			return newPrecondition("trade is not disputed, current status: %s", trade.Status)
		}

		now := s.now()
		dispute.Status = models.DisputeStatusResolved
		dispute.Resolution = resolution
		dispute.ResolvedByID = &adminID
		dispute.ResolvedAt = &now
		if err := tx.Save(dispute).Error; err != nil {
			return fmt.Errorf("failed to update dispute: %w", err)
		}

		return s.cancelTrade(tx, trade, fmt.Sprintf("dispute resolved: %s", resolution))
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Dispute %s resolved by admin %d", disputeID, adminID)
	return dispute, nil
}

// resolveOpenDispute marks any open dispute on the trade resolved. No-op
// when none exists.
func (s *TradeService) resolveOpenDispute(tx *gorm.DB, tradeID uuid.UUID, adminID uint, resolution string) error {
	var dispute models.Dispute
	err := tx.Where("trade_id = ? AND status = ?", tradeID, models.DisputeStatusOpen).First(&dispute).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	dispute.Status = models.DisputeStatusResolved
	dispute.Resolution = resolution
	dispute.ResolvedByID = &adminID
	dispute.ResolvedAt = &now
	return tx.Save(&dispute).Error
}

// ExpireTrade cancels one PROCESSING trade whose payment window has passed.
// The deadline is re-checked under the lock, so a confirm that lands first
// always wins.
func (s *TradeService) ExpireTrade(ctx context.Context, tradeID uuid.UUID) (*models.Trade, error) {
	return s.transition(ctx, tradeID, func(tx *gorm.DB, trade *models.Trade) error {
		if trade.Status != models.TradeStatusProcessing {
			return newPrecondition("trade is not processing, current status: %s", trade.Status)
		}
		if trade.ExpiresAt == nil || s.now().Before(*trade.ExpiresAt) {
			return newPrecondition("trade payment window has not expired")
		}
		return s.cancelTrade(tx, trade, "payment window expired")
	})
}

// SweepExpired expires every PROCESSING trade past its deadline. Each trade
// is handled in its own transaction so one failure never blocks the rest.
// Returns the number of trades cancelled.
func (s *TradeService) SweepExpired(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredProcessingIDs(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired trades: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if _, err := s.ExpireTrade(ctx, id); err != nil {
			// Already confirmed, cancelled or disputed since the listing
			// query; skip quietly unless it is a real failure.
			if IsPrecondition(err) {
				continue
			}
			log.Printf("Warning: failed to expire trade %s: %v", id, err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Printf("Expired %d stale trade(s)", expired)
	}
	return expired, nil
}
