package papersim

import (
	"context"
	"fmt"
	"sync"

	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/errs"
	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
)

// Name is the backend name account groups route to for paper trading.
const Name = "paper_simulator"

// accountBook holds one account's paper ledger: cash balance, order/fill
// tracker, and resting order books per symbol. Everything else the
// Simulator tracks (quotes, volatility) is process-wide across accounts
// since it reflects the market, not the account.
type accountBook struct {
	balance money.D
	tracker *broker.Tracker
	resting map[string]*restingBook // symbol -> resting orders
}

// Simulator is the deterministic matching engine behind C4 (spec §4.4). It
// implements broker.Capability so the router and everything downstream of
// it treats it exactly like a live venue adapter.
type Simulator struct {
	mu sync.Mutex

	cfg   Config
	clock ids.Clock
	cal   ids.RegularSession

	accounts map[string]*accountBook
	quotes   map[string]Quote
	vol      map[string]*volatilityWindow
	subs     map[string][]chan broker.Fill

	onFill func(accountID string, f broker.Fill, o broker.Order, realizedDelta money.D)

	seq int64
}

// New creates a Simulator. clock drives session classification; cal is the
// venue's regular/extended hours calendar (spec §4.4 "classify via Clock").
func New(cfg Config, clock ids.Clock, cal ids.RegularSession) *Simulator {
	if clock == nil {
		clock = ids.RealClock{}
	}
	if cfg.InitialBalance.IsZero() {
		cfg.InitialBalance = money.FromFloat(50000)
	}
	return &Simulator{
		cfg:      cfg,
		clock:    clock,
		cal:      cal,
		accounts: make(map[string]*accountBook),
		quotes:   make(map[string]Quote),
		vol:      make(map[string]*volatilityWindow),
		subs:     make(map[string][]chan broker.Fill),
	}
}

func (s *Simulator) Name() string { return Name }

func (s *Simulator) accountFor(accountID string) *accountBook {
	b, ok := s.accounts[accountID]
	if !ok {
		b = &accountBook{
			balance: s.cfg.InitialBalance,
			tracker: broker.NewTracker(accountID),
			resting: make(map[string]*restingBook),
		}
		s.wireFillListener(accountID, b.tracker)
		s.accounts[accountID] = b
	}
	return b
}

// wireFillListener attaches the simulator-wide fill listener, if any, to a
// freshly created account's Tracker.
func (s *Simulator) wireFillListener(accountID string, tracker *broker.Tracker) {
	tracker.OnFill = func(f broker.Fill, o broker.Order, realizedDelta money.D) {
		if s.onFill != nil {
			s.onFill(accountID, f, o, realizedDelta)
		}
	}
}

// SetFillListener installs fn to be called once per applied fill across
// every account the simulator tracks, carrying the realized P&L delta the
// fill produced (e.g. to feed the strategy performance tracker). Every
// account's tracker reads the listener when a fill is applied, so accounts
// created before the call use fn as well.
func (s *Simulator) SetFillListener(fn func(accountID string, f broker.Fill, o broker.Order, realizedDelta money.D)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFill = fn
}

func (s *Simulator) restingBookFor(b *accountBook, symbol string) *restingBook {
	rb, ok := b.resting[symbol]
	if !ok {
		rb = &restingBook{}
		b.resting[symbol] = rb
	}
	return rb
}

// Submit places order. Market orders fill synchronously against the cached
// quote (or queue if the session is closed); limit/stop/stop_limit orders
// join the resting book (spec §4.4).
func (s *Simulator) Submit(ctx context.Context, order broker.Order) (broker.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.OrderID == "" {
		order.OrderID = ids.NewPrefixedID("ord")
	}
	order.Backend = Name
	order.Status = broker.StatusWorking

	book := s.accountFor(order.AccountID)
	book.tracker.RegisterOrder(order)

	spec, ok := s.cfg.Specs[order.Symbol]
	if !ok {
		book.tracker.UpdateStatus(order.OrderID, broker.StatusRejected)
		return broker.Ack{}, errs.New(errs.KindPermanentBroker, "unknown_symbol", "", fmt.Sprintf("no symbol spec for %s", order.Symbol))
	}

	session := s.cal.Classify(s.clock.Now())
	quote, haveQuote := s.quotes[order.Symbol]

	if order.Type == "market" {
		if session == ids.SessionClosed || !haveQuote {
			s.restingBookFor(book, order.Symbol).push(restingOrder{order: order, seq: s.nextSeq()})
			return broker.Ack{OrderID: order.OrderID, Status: broker.StatusWorking}, nil
		}
		if err := s.matchAndApply(book, order, quote, spec, session); err != nil {
			book.tracker.UpdateStatus(order.OrderID, broker.StatusRejected)
			return broker.Ack{}, err
		}
		return broker.Ack{OrderID: order.OrderID, Status: broker.StatusFilled}, nil
	}

	s.restingBookFor(book, order.Symbol).push(restingOrder{order: order, seq: s.nextSeq()})
	return broker.Ack{OrderID: order.OrderID, Status: broker.StatusWorking}, nil
}

func (s *Simulator) nextSeq() int64 {
	s.seq++
	return s.seq
}

// OnQuote feeds a new top-of-book tick for symbol, updating the volatility
// window and evaluating every account's resting book for that symbol (spec
// §4.4: "Evaluation occurs on each incoming quote tick").
func (s *Simulator) OnQuote(symbol string, quote Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotes[symbol] = quote
	vw, ok := s.vol[symbol]
	if !ok {
		vw = newVolatilityWindow()
		s.vol[symbol] = vw
	}
	vw.Observe(s.clock.Now(), quote.Mid())

	spec, ok := s.cfg.Specs[symbol]
	if !ok {
		return
	}
	session := s.cal.Classify(s.clock.Now())
	if session == ids.SessionClosed {
		return
	}

	for _, book := range s.accounts {
		rb, ok := book.resting[symbol]
		if !ok {
			continue
		}
		for _, ro := range rb.triggered(quote) {
			_ = s.matchAndApply(book, ro.order, quote, spec, session)
		}
	}
}

// matchAndApply implements the per-fill computation table in spec §4.4 and
// posts the resulting fill to the account's tracker and cash balance.
func (s *Simulator) matchAndApply(book *accountBook, order broker.Order, quote Quote, spec SymbolSpec, session ids.Session) error {
	pRef := quote.Mid()
	if order.Type == "limit" && order.Limit != nil {
		pRef = *order.Limit
	}
	if order.Type == "stop" && order.Stop != nil {
		pRef = *order.Stop
	}

	volMult := money.FromFloat(1)
	if vw, ok := s.vol[order.Symbol]; ok {
		volMult = vw.Multiplier(spec.TickSize)
	}

	slip := slippageTicks(spec, session, volMult, order.Qty)

	sideSign := money.FromFloat(1)
	if order.Side == "SELL" {
		sideSign = money.FromFloat(-1)
	}
	fillPrice := pRef.Add(sideSign.Mul(slip).Mul(spec.TickSize))

	commission := spec.CommissionPerUnit.Mul(order.Qty)
	if spec.AssetClass == AssetClassEquity && commission.LessThan(spec.CommissionMin) {
		commission = spec.CommissionMin
	}
	fees := spec.FeePerUnit.Mul(order.Qty)

	notional := fillPrice.Mul(order.Qty).Mul(nonZeroOr1(spec.Multiplier))
	cost := commission.Add(fees)

	if order.Side == "BUY" {
		required := notional.Add(cost)
		if required.GreaterThan(book.balance) {
			return errs.New(errs.KindSimulatorInconsist, "insufficient_balance", "", "paper account balance too low for this order")
		}
		book.balance = book.balance.Sub(required)
	} else {
		book.balance = book.balance.Add(notional).Sub(cost)
	}

	fill := broker.Fill{
		FillID:     ids.NewPrefixedID("fill"),
		OrderID:    order.OrderID,
		Qty:        order.Qty,
		Price:      fillPrice,
		Commission: commission,
		Fees:       fees,
		Slippage:   slip,
		Ts:         s.clock.Now(),
	}
	if err := book.tracker.ApplyFill(fill); err != nil {
		return err
	}

	subs := append([]chan broker.Fill{}, s.subs[order.AccountID]...)
	for _, ch := range subs {
		select {
		case ch <- fill:
		default:
		}
	}
	return nil
}

func nonZeroOr1(d money.D) money.D {
	if d.IsZero() {
		return money.FromFloat(1)
	}
	return d
}

// Cancel cancels a resting or tracked order.
func (s *Simulator) Cancel(ctx context.Context, orderID string) (broker.CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, book := range s.accounts {
		if o, ok := book.tracker.Order(orderID); ok {
			if o.Status.Terminal() {
				return broker.CancelAlreadyTerminal, nil
			}
			for _, rb := range book.resting {
				rb.remove(orderID)
			}
			book.tracker.UpdateStatus(orderID, broker.StatusCancelled)
			return broker.CancelOK, nil
		}
	}
	return broker.CancelNotFound, nil
}

// Flatten closes every open position for an account with market orders,
// best-effort (spec §4.3).
func (s *Simulator) Flatten(ctx context.Context, accountID string) error {
	s.mu.Lock()
	book, ok := s.accounts[accountID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	for _, pos := range book.tracker.Positions() {
		if pos.NetQty.IsZero() {
			continue
		}
		side := "SELL"
		if pos.NetQty.IsNegative() {
			side = "BUY"
		}
		order := broker.Order{
			AccountID: accountID,
			Symbol:    pos.Symbol,
			Side:      side,
			Qty:       money.Abs(pos.NetQty),
			Type:      "market",
		}
		if _, err := s.Submit(ctx, order); err != nil {
			continue
		}
	}
	return nil
}

// SubscribeFills registers a channel to receive future paper fills for accountID.
func (s *Simulator) SubscribeFills(ctx context.Context, accountID, lastSeenFillID string) (<-chan broker.Fill, error) {
	ch := make(chan broker.Fill, 256)
	s.mu.Lock()
	s.subs[accountID] = append(s.subs[accountID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[accountID]
		for i, c := range subs {
			if c == ch {
				s.subs[accountID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// AccountSnapshot returns the paper account's balance and positions.
func (s *Simulator) AccountSnapshot(ctx context.Context, accountID string) (broker.AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	book := s.accountFor(accountID)
	return broker.AccountSnapshot{
		AccountID:  accountID,
		BalanceUSD: book.balance,
		Positions:  book.tracker.Positions(),
		AsOf:       s.clock.Now(),
	}, nil
}

// Health always reports connected; the simulator has no external dependency.
func (s *Simulator) Health() broker.Health {
	return broker.Health{Connected: true, LastOK: s.clock.Now()}
}

// Reset atomically restores accountID's balance and clears positions,
// orders, and resting books (spec §4.4: "exposes a reset(account_id)
// operation that atomically restores balances and clears positions/orders/fills").
func (s *Simulator) Reset(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracker := broker.NewTracker(accountID)
	s.wireFillListener(accountID, tracker)
	s.accounts[accountID] = &accountBook{
		balance: s.cfg.InitialBalance,
		tracker: tracker,
		resting: make(map[string]*restingBook),
	}
}

// EstimateWorstCaseSlippage projects the dollar cost of the slippage the
// matching formula would apply to a qty-sized order in symbol right now
// (spec §4.4's slippage formula, read rather than applied). The funded rule
// engine's daily-loss projection (spec §4.5) uses this to account for an
// order's own worst-case adverse move even when it will ultimately execute
// on a live backend rather than this simulator. Returns zero for an
// unconfigured symbol, since there is no basis for an estimate.
func (s *Simulator) EstimateWorstCaseSlippage(symbol string, qty money.D) money.D {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, ok := s.cfg.Specs[symbol]
	if !ok {
		return money.Zero
	}
	volMult := money.FromFloat(1)
	if vw, ok := s.vol[symbol]; ok {
		volMult = vw.Multiplier(spec.TickSize)
	}
	session := s.cal.Classify(s.clock.Now())
	slip := slippageTicks(spec, session, volMult, qty)
	return slip.Mul(spec.TickSize).Mul(qty).Mul(nonZeroOr1(spec.Multiplier))
}
