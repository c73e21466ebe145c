package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"kasirinaja/posclient/internal/domain"
	"kasirinaja/posclient/internal/queue"
	"kasirinaja/posclient/internal/remote"
	"kasirinaja/posclient/internal/session"
	"kasirinaja/posclient/internal/state"
	"kasirinaja/posclient/internal/xid"
)

// localIDPrefix marks transaction ids minted on the till for queued sales.
const localIDPrefix = "trx"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Committer applies local effects only while the session token they were
// computed for is still current.
type Committer interface {
	Commit(token session.Token, fn func()) bool
}

type Connectivity interface {
	Offline() bool
	MarkOffline()
}

type PINVerifier interface {
	ValidateManagerPIN(pin string) bool
}

type Dependencies struct {
	Session      *session.Session
	State        *state.State
	Queue        *queue.Queue
	Authority    remote.Authority
	Committer    Committer
	Connectivity Connectivity
	PINs         PINVerifier
}

type Options struct {
	// Defaults price carts until the store's summary provides its settings.
	Defaults             domain.StoreSettings
	LoyaltySpendPerPoint float64
}

type Service struct {
	session       *session.Session
	state         *state.State
	queue         *queue.Queue
	authority     remote.Authority
	committer     Committer
	connectivity  Connectivity
	pins          PINVerifier
	defaults      domain.StoreSettings
	spendPerPoint float64
	now           func() time.Time

	mu        sync.Mutex
	reversing map[string]bool
}

func New(deps Dependencies, opts Options) *Service {
	if opts.Defaults.TaxType == "" {
		opts.Defaults.TaxType = domain.TaxTypeExclusive
	}
	return &Service{
		session:       deps.Session,
		state:         deps.State,
		queue:         deps.Queue,
		authority:     deps.Authority,
		committer:     deps.Committer,
		connectivity:  deps.Connectivity,
		pins:          deps.PINs,
		defaults:      opts.Defaults,
		spendPerPoint: opts.LoyaltySpendPerPoint,
		now:           func() time.Time { return time.Now().UTC() },
		reversing:     map[string]bool{},
	}
}

func (s *Service) ListProducts(_ context.Context) ([]domain.Product, error) {
	if s.session.ActiveStoreID() == "" {
		return nil, domain.ErrNoActiveStore
	}
	return s.state.Products(), nil
}

func (s *Service) ListPending(ctx context.Context) ([]domain.OfflineEntry, error) {
	storeID := s.session.ActiveStoreID()
	if storeID == "" {
		return nil, domain.ErrNoActiveStore
	}
	return s.queue.ListPending(ctx, storeID)
}

// Quote prices a cart without side effects.
func (s *Service) Quote(_ context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	storeID := s.session.ActiveStoreID()
	if storeID == "" {
		return domain.QuoteResponse{}, domain.ErrNoActiveStore
	}
	p, err := s.price(req)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	return domain.QuoteResponse{
		StoreID:      storeID,
		Cart:         p.cart,
		Lines:        p.quoteLines,
		Promotions:   p.evaluations,
		AppliedPromo: p.applied,
		Totals:       p.totals,
	}, nil
}

// Submit records a sale. Online, the authority must accept it before any
// local effect is applied. Offline, or when the authority turns out to be
// unreachable, the sale is queued and its effects are applied optimistically.
func (s *Service) Submit(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	token := s.session.Token()
	if token.StoreID == "" {
		return domain.SaleResponse{}, domain.ErrNoActiveStore
	}

	p, err := s.price(req.QuoteRequest)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	payload, err := s.buildPayload(token.StoreID, req, p)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if !s.connectivity.Offline() {
		res, err := s.authority.SubmitSale(ctx, payload)
		if err == nil {
			tx := transactionFrom(payload, res.TransactionID, domain.TxStatusCompleted)
			if !res.CreatedAt.IsZero() {
				tx.Date = res.CreatedAt
			}
			s.applySaleEffects(token, tx)
			return saleResponse(tx, p.totals, false), nil
		}
		if !errors.Is(err, domain.ErrNetworkUnavailable) {
			return domain.SaleResponse{}, rejected(err)
		}
		log.Printf("[service] WARN: authority unreachable, queueing sale %s: %v", payload.ClientTransactionID, err)
		s.connectivity.MarkOffline()
	}

	if _, err := s.queue.Enqueue(ctx, token.StoreID, payload); err != nil {
		return domain.SaleResponse{}, fmt.Errorf("queue offline sale: %w", err)
	}
	tx := transactionFrom(payload, payload.ClientTransactionID, domain.TxStatusPendingSync)
	s.applySaleEffects(token, tx)
	log.Printf("[service] sale %s queued for store %s", tx.ID, token.StoreID)
	return saleResponse(tx, p.totals, true), nil
}

func (s *Service) Void(ctx context.Context, req domain.VoidRequest) (domain.ReversalResponse, error) {
	return s.reverse(ctx, domain.TxStatusVoid, req.TransactionID, req.Reason, req.ManagerPIN)
}

func (s *Service) Refund(ctx context.Context, req domain.RefundRequest) (domain.ReversalResponse, error) {
	return s.reverse(ctx, domain.TxStatusRefunded, req.TransactionID, req.Reason, req.ManagerPIN)
}

// ReplayOffline drains a store's queue through the authority. Accepted sales
// are marked completed locally without re-applying their effects.
func (s *Service) ReplayOffline(ctx context.Context, storeID string) (domain.ReplayResult, error) {
	if storeID == "" {
		storeID = s.session.ActiveStoreID()
	}
	if storeID == "" {
		return domain.ReplayResult{}, domain.ErrNoActiveStore
	}

	return s.queue.Replay(ctx, storeID, func(ctx context.Context, entry domain.OfflineEntry) error {
		res, err := s.authority.SubmitSale(ctx, entry.Payload)
		if err != nil {
			if errors.Is(err, domain.ErrNetworkUnavailable) {
				s.connectivity.MarkOffline()
			}
			return err
		}

		token := s.session.Token()
		if token.StoreID != storeID {
			return nil
		}
		localID := entry.Payload.ClientTransactionID
		s.committer.Commit(token, func() {
			if err := s.state.ConfirmPending(localID, res.TransactionID); err != nil && !errors.Is(err, state.ErrNotFound) {
				log.Printf("[service] WARN: confirm %s as %s: %v", localID, res.TransactionID, err)
			}
		})
		return nil
	})
}

// ReplayAllOffline replays the queue of every store with pending sales, the
// active store first. A failing store is logged and skipped.
func (s *Service) ReplayAllOffline(ctx context.Context) (map[string]domain.ReplayResult, error) {
	stores, err := s.queue.PendingStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending stores: %w", err)
	}
	if active := s.session.ActiveStoreID(); slices.Contains(stores, active) {
		rest := slices.DeleteFunc(stores, func(id string) bool { return id == active })
		stores = append([]string{active}, rest...)
	}

	results := make(map[string]domain.ReplayResult, len(stores))
	for _, storeID := range stores {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.ReplayOffline(ctx, storeID)
		if err != nil {
			log.Printf("[service] WARN: offline replay for %s: %v", storeID, err)
			continue
		}
		results[storeID] = res
	}
	return results, nil
}

func (s *Service) reverse(ctx context.Context, status string, transactionID string, reason string, pin string) (domain.ReversalResponse, error) {
	token := s.session.Token()
	if token.StoreID == "" {
		return domain.ReversalResponse{}, domain.ErrNoActiveStore
	}

	transactionID = strings.TrimSpace(transactionID)
	reason = strings.TrimSpace(reason)
	if transactionID == "" {
		return domain.ReversalResponse{}, fmt.Errorf("%w: transaction id is required", domain.ErrInvalidRequest)
	}
	if reason == "" {
		return domain.ReversalResponse{}, fmt.Errorf("%w: reason is required", domain.ErrInvalidRequest)
	}
	if !s.authorized(ctx, pin) {
		return domain.ReversalResponse{}, domain.ErrPermissionDenied
	}

	local, known := s.state.Transaction(transactionID)
	if (known && local.Status == domain.TxStatusPendingSync) || (!known && xid.HasPrefix(transactionID, localIDPrefix)) {
		return domain.ReversalResponse{}, domain.ErrPendingSync
	}
	if known && (local.Status == domain.TxStatusVoid || local.Status == domain.TxStatusRefunded) {
		return domain.ReversalResponse{}, domain.ErrAlreadyProcessed
	}
	if s.connectivity.Offline() {
		return domain.ReversalResponse{}, fmt.Errorf("%w: reversal needs the authority", domain.ErrNetworkUnavailable)
	}

	if !s.beginReversal(transactionID) {
		return domain.ReversalResponse{}, domain.ErrAlreadyProcessed
	}
	defer s.endReversal(transactionID)

	canonical, err := s.authority.FetchTransaction(ctx, transactionID)
	if err != nil {
		return domain.ReversalResponse{}, s.remoteErr(err)
	}
	if canonical.Status == domain.TxStatusVoid || canonical.Status == domain.TxStatusRefunded {
		return domain.ReversalResponse{}, domain.ErrAlreadyProcessed
	}
	if canonical.StoreID != "" && canonical.StoreID != token.StoreID {
		return domain.ReversalResponse{}, fmt.Errorf("%w: transaction belongs to another store", domain.ErrInvalidRequest)
	}

	if status == domain.TxStatusVoid {
		err = s.authority.SubmitVoid(ctx, transactionID, reason)
	} else {
		err = s.authority.SubmitRefund(ctx, transactionID, reason)
	}
	if err != nil {
		return domain.ReversalResponse{}, s.remoteErr(err)
	}

	s.applyReversalEffects(token, *canonical, status, reason)
	log.Printf("[service] transaction %s -> %s (%s)", transactionID, status, reason)

	return domain.ReversalResponse{
		TransactionID: transactionID,
		Status:        status,
		ProcessedAt:   s.now().Format(time.RFC3339),
	}, nil
}

func (s *Service) authorized(ctx context.Context, pin string) bool {
	if actor, ok := ActorFromContext(ctx); ok {
		if actor.Role == domain.RoleAdmin || actor.Role == domain.RoleManager {
			return true
		}
	}
	return s.pins != nil && strings.TrimSpace(pin) != "" && s.pins.ValidateManagerPIN(pin)
}

func (s *Service) beginReversal(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reversing[id] {
		return false
	}
	s.reversing[id] = true
	return true
}

func (s *Service) endReversal(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reversing, id)
}

func (s *Service) remoteErr(err error) error {
	if errors.Is(err, domain.ErrNetworkUnavailable) {
		s.connectivity.MarkOffline()
		return err
	}
	return rejected(err)
}

func rejected(err error) error {
	if errors.Is(err, domain.ErrBackendRejected) || errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrBackendRejected, err)
}

func (s *Service) applySaleEffects(token session.Token, tx domain.Transaction) {
	applied := s.committer.Commit(token, func() {
		for _, line := range tx.Items {
			if !line.IsService {
				s.state.AdjustStock(line.ProductID, -line.Qty)
			}
		}
		s.state.AppendTransaction(tx)
		if tx.CustomerID != "" {
			s.state.AdjustCustomer(tx.CustomerID, tx.Total, tx.DebtAmount, tx.PointsEarned)
		}
	})
	if !applied {
		log.Printf("[service] WARN: store switched before sale %s was applied locally", tx.ID)
	}
}

func (s *Service) applyReversalEffects(token session.Token, tx domain.Transaction, status string, reason string) {
	applied := s.committer.Commit(token, func() {
		for _, line := range tx.Items {
			if !line.IsService {
				s.state.AdjustStock(line.ProductID, line.Qty)
			}
		}
		if tx.CustomerID != "" {
			s.state.AdjustCustomer(tx.CustomerID, -tx.Total, -tx.DebtAmount, -tx.PointsEarned)
		}
		if _, ok := s.state.Transaction(tx.ID); ok {
			if err := s.state.SetTransactionStatus(tx.ID, status, reason); err != nil {
				log.Printf("[service] WARN: local status of %s not updated: %v", tx.ID, err)
			}
			return
		}
		tx.Status = status
		tx.Reason = reason
		s.state.AppendTransaction(tx)
	})
	if !applied {
		log.Printf("[service] WARN: store switched before reversal of %s was applied locally", tx.ID)
	}
}

func (s *Service) buildPayload(storeID string, req domain.SaleRequest, p priced) (domain.SalePayload, error) {
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(method) {
		return domain.SalePayload{}, fmt.Errorf("%w: unsupported payment method %q", domain.ErrInvalidRequest, req.PaymentMethod)
	}
	if req.AmountPaid < 0 {
		return domain.SalePayload{}, fmt.Errorf("%w: amount paid must not be negative", domain.ErrInvalidRequest)
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if customerID != "" && s.state.Loaded(state.Customers) {
		if _, ok := s.state.Customer(customerID); !ok {
			return domain.SalePayload{}, fmt.Errorf("%w: unknown customer %s", domain.ErrInvalidRequest, customerID)
		}
	}

	final := p.totals.FinalTotal
	paid := req.AmountPaid
	var change, debt float64
	switch method {
	case domain.PaymentCash:
		if paid < final {
			return domain.SalePayload{}, fmt.Errorf("%w: cash received is below the total", domain.ErrInvalidRequest)
		}
		change = paid - final
	case domain.PaymentDebt:
		if customerID == "" {
			return domain.SalePayload{}, fmt.Errorf("%w: debt sales need a customer", domain.ErrInvalidRequest)
		}
		debt = math.Max(0, final-paid)
	default:
		if paid == 0 {
			paid = final
		}
	}

	points := 0
	if customerID != "" && s.spendPerPoint > 0 {
		points = int(math.Floor(final / s.spendPerPoint))
	}

	promotionID := ""
	if p.applied != nil && p.applied.IsApplicable {
		promotionID = p.applied.PromotionID
	}

	return domain.SalePayload{
		ClientTransactionID: xid.New(localIDPrefix),
		StoreID:             storeID,
		Items:               p.txLines,
		Subtotal:            p.totals.Subtotal,
		DiscountAmount:      p.totals.DiscountAmount,
		TaxAmount:           p.totals.TaxAmount,
		ServiceCharge:       p.totals.ServiceCharge,
		Total:               final,
		PaymentMethod:       method,
		AmountPaid:          paid,
		Change:              change,
		CustomerID:          customerID,
		PointsEarned:        points,
		DebtAmount:          debt,
		PromotionID:         promotionID,
		CreatedAt:           s.now(),
	}, nil
}

func transactionFrom(p domain.SalePayload, id string, status string) domain.Transaction {
	return domain.Transaction{
		ID:            id,
		LocalID:       p.ClientTransactionID,
		StoreID:       p.StoreID,
		Items:         p.Items,
		Subtotal:      p.Subtotal,
		Discount:      p.DiscountAmount,
		Tax:           p.TaxAmount,
		Service:       p.ServiceCharge,
		Total:         p.Total,
		PaymentMethod: p.PaymentMethod,
		AmountPaid:    p.AmountPaid,
		Change:        p.Change,
		CustomerID:    p.CustomerID,
		PointsEarned:  p.PointsEarned,
		DebtAmount:    p.DebtAmount,
		PromotionID:   p.PromotionID,
		Status:        status,
		Date:          p.CreatedAt,
	}
}

func saleResponse(tx domain.Transaction, totals domain.Totals, queued bool) domain.SaleResponse {
	return domain.SaleResponse{
		TransactionID: tx.ID,
		Status:        tx.Status,
		Queued:        queued,
		Totals:        totals,
		Change:        tx.Change,
		PointsEarned:  tx.PointsEarned,
		CreatedAt:     tx.Date.Format(time.RFC3339),
	}
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentCard, domain.PaymentQRIS, domain.PaymentEwallet, domain.PaymentDebt:
		return true
	default:
		return false
	}
}
