package jobs

import (
	"context"
	"log"
	"time"

	"p2p-market/internal/services"
)

// TradeExpirer cancels trades whose payment window has lapsed.
type TradeExpirer struct {
	tradeService *services.TradeService
	interval     time.Duration
	stopChan     chan struct{}
}

// NewTradeExpirer creates a new trade expiry job
func NewTradeExpirer(tradeService *services.TradeService, interval time.Duration) *TradeExpirer {
	return &TradeExpirer{
		tradeService: tradeService,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the expiry loop
func (te *TradeExpirer) Start() {
	log.Printf("[TradeExpirer] Starting trade expiry job (interval: %v)", te.interval)

	ticker := time.NewTicker(te.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			te.sweep()
		case <-te.stopChan:
			log.Println("[TradeExpirer] Stopping trade expiry job")
			return
		}
	}
}

// Stop stops the expiry loop
func (te *TradeExpirer) Stop() {
	close(te.stopChan)
}

func (te *TradeExpirer) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), te.interval)
	defer cancel()

	expired, err := te.tradeService.SweepExpired(ctx)
	if err != nil {
		log.Printf("[TradeExpirer] Sweep failed: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("[TradeExpirer] Cancelled %d expired trade(s)", expired)
	}
}
