package billing

import (
	"fieldledger/internal/core/clock"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/core/tx"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/outbox"
	"fieldledger/pkg/logger"
)

// Deps wires the ledger. Outbox, Audit, Tx, Clock, Logger and Metrics are
// optional.
type Deps struct {
	Repos     Repositories
	Allocator numerator.Allocator
	Outbox    outbox.Emitter
	Audit     audit.Sink
	Clock     clock.Clock
	Tx        tx.Manager
	Logger    *logger.Logger
	Metrics   FailureRecorder
}

// Ledger groups the services of one local store. Services share one
// Reconciler so document locks are common to all of them.
type Ledger struct {
	Clients    *ClientService
	Quotes     *QuoteService
	Invoices   *InvoiceService
	LineItems  *LineItemService
	Payments   *PaymentService
	Reconciler *Reconciler
	Sync       *SyncService
}

func NewLedger(d Deps) *Ledger {
	rec := NewReconciler(d)
	return &Ledger{
		Clients:    NewClientService(d),
		Quotes:     NewQuoteService(d, rec),
		Invoices:   NewInvoiceService(d, rec),
		LineItems:  NewLineItemService(d, rec),
		Payments:   NewPaymentService(d, rec),
		Reconciler: rec,
		Sync:       NewSyncService(d, rec),
	}
}
