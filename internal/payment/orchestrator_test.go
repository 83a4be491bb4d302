package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukanlabs/checkout-api/internal/common"
	"github.com/dukanlabs/checkout-api/internal/payment"
	"github.com/dukanlabs/checkout-api/internal/store"
)

// orchestratorStub mimics the conditional-update semantics of the durable
// store: status swaps and wallet debits are serialised behind one mutex.
type orchestratorStub struct {
	mu       sync.Mutex
	orders   map[string]*store.Order
	attempts map[string][]*store.PaymentAttempt
	balance  int64

	// one-shot fault injection, cleared on first use
	createAttemptErr error
	settleErr        error
}

func newOrchestratorStub(balance int64, orders ...store.Order) *orchestratorStub {
	stub := &orchestratorStub{
		orders:   map[string]*store.Order{},
		attempts: map[string][]*store.PaymentAttempt{},
		balance:  balance,
	}
	for i := range orders {
		o := orders[i]
		stub.orders[store.UUIDString(o.ID)] = &o
	}
	return stub
}

func (s *orchestratorStub) GetOrderByID(_ context.Context, id pgtype.UUID) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[store.UUIDString(id)]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return *o, nil
}

func (s *orchestratorStub) TransitionOrderStatus(_ context.Context, id pgtype.UUID, from []string, to string) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[store.UUIDString(id)]
	if !ok {
		return store.Order{}, store.ErrStateConflict
	}
	for _, f := range from {
		if o.Status == f {
			o.Status = to
			return *o, nil
		}
	}
	return store.Order{}, store.ErrStateConflict
}

func (s *orchestratorStub) CreateAttempt(_ context.Context, orderID pgtype.UUID, method string) (store.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createAttemptErr != nil {
		err := s.createAttemptErr
		s.createAttemptErr = nil
		return store.PaymentAttempt{}, err
	}
	attempt := &store.PaymentAttempt{
		ID:      store.NewUUID(),
		OrderID: orderID,
		Method:  method,
		Outcome: store.OutcomePending,
	}
	key := store.UUIDString(orderID)
	s.attempts[key] = append(s.attempts[key], attempt)
	return *attempt, nil
}

func (s *orchestratorStub) SetAttemptGatewayRef(_ context.Context, id pgtype.UUID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.findAttempt(id); a != nil {
		a.GatewayOrderRef = pgtype.Text{String: ref, Valid: true}
	}
	return nil
}

func (s *orchestratorStub) LatestAttemptByOrder(_ context.Context, orderID pgtype.UUID) (store.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.attempts[store.UUIDString(orderID)]
	if len(list) == 0 {
		return store.PaymentAttempt{}, store.ErrNotFound
	}
	return *list[len(list)-1], nil
}

func (s *orchestratorStub) SettleOrder(_ context.Context, p store.SettleParams) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settleErr != nil {
		err := s.settleErr
		s.settleErr = nil
		return store.Order{}, err
	}
	o, ok := s.orders[store.UUIDString(p.OrderID)]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	if p.DebitWallet {
		if s.balance < p.DebitAmount {
			return store.Order{}, store.ErrInsufficientFunds
		}
		s.balance -= p.DebitAmount
	}
	if o.Status == store.OrderStatusSettled {
		return store.Order{}, store.ErrStateConflict
	}
	o.Status = store.OrderStatusSettled
	o.PaymentStatus = store.PaymentStatusPaid
	if a := s.findAttempt(p.AttemptID); a != nil {
		a.Outcome = store.OutcomeSuccess
	}
	return *o, nil
}

func (s *orchestratorStub) FailOrderAttempt(_ context.Context, orderID, attemptID pgtype.UUID, reason string, auditFlag bool) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[store.UUIDString(orderID)]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	o.Status = store.OrderStatusFailed
	o.PaymentStatus = store.PaymentStatusFailed
	o.AuditFlagged = o.AuditFlagged || auditFlag
	if a := s.findAttempt(attemptID); a != nil {
		a.Outcome = store.OutcomeFailed
		a.FailReason = pgtype.Text{String: reason, Valid: true}
	}
	return *o, nil
}

func (s *orchestratorStub) findAttempt(id pgtype.UUID) *store.PaymentAttempt {
	for _, list := range s.attempts {
		for _, a := range list {
			if store.UUIDEqual(a.ID, id) {
				return a
			}
		}
	}
	return nil
}

func newOrder(userID pgtype.UUID, method string, total int64) store.Order {
	return store.Order{
		ID:            store.NewUUID(),
		UserID:        userID,
		PaymentMethod: method,
		Status:        store.OrderStatusCreated,
		PaymentStatus: store.PaymentStatusPending,
		GrandTotal:    total,
	}
}

func TestStartGatewayCreatesAttemptAndRef(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodGateway, 960)
	stub := newOrchestratorStub(0, order)
	orc := &payment.Orchestrator{
		Q:        stub,
		Provider: payment.Razorpay{KeyID: "key_id", KeySecret: "secret"},
		Currency: "INR",
	}

	result, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if result.Order.Status != store.OrderStatusAwaitingGateway {
		t.Fatalf("status = %s, want AWAITING_GATEWAY", result.Order.Status)
	}
	if result.GatewayOrderRef == "" {
		t.Fatal("expected a gateway order reference")
	}

	// A replayed pay request reuses the pending attempt instead of opening
	// a second gateway order.
	again, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("replay start: %v", err)
	}
	if !again.Reused {
		t.Fatal("expected the pending attempt to be reused")
	}
	if again.GatewayOrderRef != result.GatewayOrderRef {
		t.Fatalf("replay returned a different ref: %q vs %q", again.GatewayOrderRef, result.GatewayOrderRef)
	}
	if got := len(stub.attempts[store.UUIDString(order.ID)]); got != 1 {
		t.Fatalf("attempt count = %d, want 1", got)
	}
}

func TestStartWalletSettlesAtomically(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodWallet, 700)
	stub := newOrchestratorStub(1000, order)
	orc := &payment.Orchestrator{Q: stub}

	result, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if result.Order.Status != store.OrderStatusSettled {
		t.Fatalf("status = %s, want SETTLED", result.Order.Status)
	}
	if stub.balance != 300 {
		t.Fatalf("balance = %d, want 300", stub.balance)
	}
}

func TestStartWalletInsufficientFunds(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodWallet, 700)
	stub := newOrchestratorStub(500, order)
	orc := &payment.Orchestrator{Q: stub}

	_, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if common.CodeOf(err) != common.CodeInsufficientFunds {
		t.Fatalf("error code = %q, want INSUFFICIENT_FUNDS", common.CodeOf(err))
	}
	if stub.balance != 500 {
		t.Fatalf("balance changed to %d on failed debit", stub.balance)
	}
	current, _ := stub.GetOrderByID(context.Background(), order.ID)
	if current.Status != store.OrderStatusFailed {
		t.Fatalf("order status = %s, want FAILED", current.Status)
	}
	if current.AuditFlagged {
		t.Fatal("insufficient funds must not flag the order for audit")
	}
}

func TestStartWalletConcurrentDoubleSpend(t *testing.T) {
	userID := store.NewUUID()
	first := newOrder(userID, store.MethodWallet, 600)
	second := newOrder(userID, store.MethodWallet, 600)
	stub := newOrchestratorStub(1000, first, second)
	orc := &payment.Orchestrator{Q: stub}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, o := range []store.Order{first, second} {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			_, err := orc.Start(context.Background(), store.UUIDString(userID), orderID)
			errs <- err
		}(store.UUIDString(o.ID))
	}
	wg.Wait()
	close(errs)

	settled, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			settled++
		case common.CodeOf(err) == common.CodeInsufficientFunds:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if settled != 1 || rejected != 1 {
		t.Fatalf("settled=%d rejected=%d, want exactly one of each", settled, rejected)
	}
	if stub.balance != 400 {
		t.Fatalf("balance = %d, want 400", stub.balance)
	}
}

func TestStartGatewayRetryAfterFailureMintsNewRef(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodGateway, 960)
	stub := newOrchestratorStub(0, order)
	orc := &payment.Orchestrator{
		Q:        stub,
		Provider: payment.Razorpay{KeyID: "key_id", KeySecret: "secret"},
		Currency: "INR",
	}

	first, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("first start: %v", err)
	}

	// The sweep expired the order; the old attempt keeps its ref.
	stub.mu.Lock()
	stub.orders[store.UUIDString(order.ID)].Status = store.OrderStatusFailed
	stub.attempts[store.UUIDString(order.ID)][0].Outcome = store.OutcomeExpired
	stub.mu.Unlock()

	retry, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("retry start: %v", err)
	}
	if retry.Reused {
		t.Fatal("retry after expiry must open a fresh attempt")
	}
	if retry.GatewayOrderRef == "" || retry.GatewayOrderRef == first.GatewayOrderRef {
		t.Fatalf("retry must mint a distinct ref, got %q twice", first.GatewayOrderRef)
	}
	if got := len(stub.attempts[store.UUIDString(order.ID)]); got != 2 {
		t.Fatalf("attempt count = %d, want 2", got)
	}
}

func TestStartWalletTransientErrorLeavesOrderRetryable(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodWallet, 700)
	stub := newOrchestratorStub(1000, order)
	stub.settleErr = errors.New("connection reset")
	orc := &payment.Orchestrator{Q: stub}

	_, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err == nil {
		t.Fatal("expected the transient settle error to surface")
	}
	if common.CodeOf(err) == common.CodeInsufficientFunds {
		t.Fatal("a transient error must not masquerade as insufficient funds")
	}
	current, _ := stub.GetOrderByID(context.Background(), order.ID)
	if current.Status != store.OrderStatusFailed {
		t.Fatalf("order status = %s, want FAILED so the caller can retry", current.Status)
	}
	if stub.balance != 1000 {
		t.Fatalf("balance = %d, want untouched 1000", stub.balance)
	}

	result, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("retry start: %v", err)
	}
	if result.Order.Status != store.OrderStatusSettled {
		t.Fatalf("retry status = %s, want SETTLED", result.Order.Status)
	}
	if stub.balance != 300 {
		t.Fatalf("balance after retry = %d, want 300", stub.balance)
	}
}

func TestStartWalletAttemptCreationFailureLeavesOrderRetryable(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodWallet, 700)
	stub := newOrchestratorStub(1000, order)
	stub.createAttemptErr = errors.New("too many connections")
	orc := &payment.Orchestrator{Q: stub}

	if _, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID)); err == nil {
		t.Fatal("expected the attempt creation error to surface")
	}
	current, _ := stub.GetOrderByID(context.Background(), order.ID)
	if current.Status != store.OrderStatusFailed {
		t.Fatalf("order status = %s, want FAILED so the caller can retry", current.Status)
	}

	result, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("retry start: %v", err)
	}
	if result.Order.Status != store.OrderStatusSettled {
		t.Fatalf("retry status = %s, want SETTLED", result.Order.Status)
	}
}

func TestStartCashOnDeliverySettlesImmediately(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodCashOnDelivery, 960)
	stub := newOrchestratorStub(0, order)
	orc := &payment.Orchestrator{Q: stub}

	result, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if result.Order.Status != store.OrderStatusSettled {
		t.Fatalf("status = %s, want SETTLED", result.Order.Status)
	}
	if stub.balance != 0 {
		t.Fatalf("cash on delivery must not touch the wallet, balance = %d", stub.balance)
	}
}

func TestStartOnSettledOrderIsNoOp(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodWallet, 700)
	order.Status = store.OrderStatusSettled
	order.PaymentStatus = store.PaymentStatusPaid
	stub := newOrchestratorStub(1000, order)
	orc := &payment.Orchestrator{Q: stub}

	result, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("start on settled order: %v", err)
	}
	if !result.Reused {
		t.Fatal("expected a no-op replay result")
	}
	if stub.balance != 1000 {
		t.Fatalf("replay debited the wallet, balance = %d", stub.balance)
	}
}

func TestStartRejectsForeignOrder(t *testing.T) {
	owner := store.NewUUID()
	order := newOrder(owner, store.MethodWallet, 700)
	stub := newOrchestratorStub(1000, order)
	orc := &payment.Orchestrator{Q: stub}

	_, err := orc.Start(context.Background(), store.UUIDString(store.NewUUID()), store.UUIDString(order.ID))
	if common.CodeOf(err) != common.CodeOrderNotFound {
		t.Fatalf("error code = %q, want ORDER_NOT_FOUND", common.CodeOf(err))
	}
}

func TestStatusReportsLatestAttempt(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodGateway, 960)
	stub := newOrchestratorStub(0, order)
	orc := &payment.Orchestrator{
		Q:        stub,
		Provider: payment.Razorpay{KeyID: "key_id", KeySecret: "secret"},
	}
	if _, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID)); err != nil {
		t.Fatalf("start: %v", err)
	}

	view, err := orc.Status(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if view.OrderStatus != store.OrderStatusAwaitingGateway {
		t.Fatalf("order status = %s, want AWAITING_GATEWAY", view.OrderStatus)
	}
	if view.AttemptOutcome != store.OutcomePending {
		t.Fatalf("attempt outcome = %s, want PENDING", view.AttemptOutcome)
	}
	if view.GatewayOrderRef == "" {
		t.Fatal("expected the gateway order reference in the status view")
	}
}

func TestStartGatewayStateConflict(t *testing.T) {
	userID := store.NewUUID()
	order := newOrder(userID, store.MethodGateway, 960)
	order.Status = store.OrderStatusDebiting
	stub := newOrchestratorStub(0, order)
	orc := &payment.Orchestrator{
		Q:        stub,
		Provider: payment.Razorpay{KeySecret: "secret"},
	}

	_, err := orc.Start(context.Background(), store.UUIDString(userID), store.UUIDString(order.ID))
	if common.CodeOf(err) != common.CodeStateConflict {
		t.Fatalf("error code = %q, want STATE_CONFLICT", common.CodeOf(err))
	}
}
