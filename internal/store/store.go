package store

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/traderterminal/core/internal/alert"
	"github.com/traderterminal/core/internal/broker"
	"github.com/traderterminal/core/internal/funded"
	"github.com/traderterminal/core/internal/ids"
	"github.com/traderterminal/core/internal/money"
	"github.com/traderterminal/core/internal/strategytracker"
)

// Store wraps a gorm.DB over a single SQLite file holding the engine's
// append-only event log.
type Store struct {
	db    *gorm.DB
	clock ids.Clock
}

// Open creates (or reopens) the SQLite-backed store at path, migrating every
// table. An empty path opens an in-memory database, used by tests.
func Open(path string, clock ids.Clock) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := db.AutoMigrate(
		&AlertRecord{},
		&OrderRecord{},
		&FillRecord{},
		&StrategySnapshotRecord{},
		&ModeTransitionRecord{},
		&RiskViolationRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate store schema: %w", err)
	}
	if clock == nil {
		clock = ids.RealClock{}
	}
	return &Store{db: db, clock: clock}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordAlert appends the ingress record for a accepted alert. Duplicate
// alert_ids (a replayed webhook already admitted by the ingress
// idempotency cache) are ignored rather than erroring.
func (s *Store) RecordAlert(a alert.Alert) error {
	rec := AlertRecord{
		AlertID:      a.AlertID,
		ReceivedAt:   a.ReceivedAt,
		SourceIP:     a.SourceIP,
		Symbol:       a.Symbol,
		Action:       string(a.Action),
		Quantity:     a.Quantity,
		OrderType:    string(a.OrderType),
		Price:        a.Price,
		StopPrice:    a.StopPrice,
		AccountGroup: a.AccountGroup,
		StrategyID:   a.StrategyID,
		Timeframe:    a.Timeframe,
		Comment:      a.Comment,
		PayloadHash:  a.PayloadHash,
	}
	err := s.db.Where("alert_id = ?", a.AlertID).FirstOrCreate(&rec).Error
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}

// RecordOrderEvent appends a new snapshot row for o. Call it once per order
// state transition (submit, partial fill, terminal fill, cancel, reject);
// Seq ordering within OrderID lets replay reconstruct the transition history.
func (s *Store) RecordOrderEvent(o broker.Order) error {
	rec := OrderRecord{
		OrderID:      o.OrderID,
		AlertID:      o.AlertID,
		StrategyID:   o.StrategyID,
		AccountID:    o.AccountID,
		Backend:      o.Backend,
		Symbol:       o.Symbol,
		Side:         o.Side,
		Qty:          o.Qty,
		Type:         o.Type,
		Limit:        o.Limit,
		Stop:         o.Stop,
		Status:       string(o.Status),
		FilledQty:    o.FilledQty,
		AvgFillPrice: o.AvgFillPrice,
		ModeOverride: o.ModeOverride,
		RecordedAt:   s.clock.Now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("record order event: %w", err)
	}
	return nil
}

// RecordFill appends one fill against an order.
func (s *Store) RecordFill(accountID string, f broker.Fill) error {
	rec := FillRecord{
		FillID:     f.FillID,
		OrderID:    f.OrderID,
		AccountID:  accountID,
		Qty:        f.Qty,
		Price:      f.Price,
		Commission: f.Commission,
		Fees:       f.Fees,
		Slippage:   f.Slippage,
		Ts:         f.Ts,
	}
	err := s.db.Where("fill_id = ?", f.FillID).FirstOrCreate(&rec).Error
	if err != nil {
		return fmt.Errorf("record fill: %w", err)
	}
	return nil
}

// RecordStrategySnapshot appends the current mode/set state of a strategy
// tracker, so a restart can resume the tracker without replaying its full
// trade history.
func (s *Store) RecordStrategySnapshot(strategyID string, mode strategytracker.Mode, setNumber, lifetimePaper int) error {
	rec := StrategySnapshotRecord{
		StrategyID:    strategyID,
		Mode:          string(mode),
		SetNumber:     setNumber,
		LifetimePaper: lifetimePaper,
		RecordedAt:    s.clock.Now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("record strategy snapshot: %w", err)
	}
	return nil
}

// RecordModeTransition appends one strategy tracker transition or
// eligibility signal.
func (s *Store) RecordModeTransition(strategyID string, t strategytracker.ModeTransition) error {
	rec := ModeTransitionRecord{
		StrategyID: strategyID,
		FromMode:   string(t.From),
		ToMode:     string(t.To),
		Reason:     t.Reason,
		SetNumber:  t.SetNumber,
		Eligible:   t.Eligible,
		At:         t.At,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("record mode transition: %w", err)
	}
	return nil
}

// RecordRiskViolation appends one non-ok funded rule-engine verdict.
func (s *Store) RecordRiskViolation(accountID, symbol string, qty money.D, r funded.Result) error {
	rec := RiskViolationRecord{
		AccountID: accountID,
		Symbol:    symbol,
		Qty:       qty,
		Verdict:   string(r.Verdict),
		Reason:    r.Reason,
		At:        s.clock.Now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("record risk violation: %w", err)
	}
	return nil
}

// LoadAlerts returns every alert record in Seq order, oldest first.
func (s *Store) LoadAlerts() ([]AlertRecord, error) {
	var out []AlertRecord
	err := s.db.Order("seq ASC").Find(&out).Error
	return out, err
}

// LoadLatestOrders returns the highest-Seq row per OrderID, i.e. each
// order's current state after folding its transition history.
func (s *Store) LoadLatestOrders() ([]OrderRecord, error) {
	var rows []OrderRecord
	if err := s.db.Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	latest := make(map[string]OrderRecord, len(rows))
	order := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, ok := latest[r.OrderID]; !ok {
			order = append(order, r.OrderID)
		}
		latest[r.OrderID] = r
	}
	out := make([]OrderRecord, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out, nil
}

// LoadFills returns every fill in Seq order for the given order ID.
func (s *Store) LoadFills(orderID string) ([]FillRecord, error) {
	var out []FillRecord
	err := s.db.Where("order_id = ?", orderID).Order("seq ASC").Find(&out).Error
	return out, err
}

// LoadStrategySnapshots returns the highest-Seq snapshot per strategy ID.
func (s *Store) LoadStrategySnapshots() (map[string]StrategySnapshotRecord, error) {
	var rows []StrategySnapshotRecord
	if err := s.db.Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	latest := make(map[string]StrategySnapshotRecord, len(rows))
	for _, r := range rows {
		latest[r.StrategyID] = r
	}
	return latest, nil
}

// LoadModeTransitions returns every transition for strategyID in Seq order.
func (s *Store) LoadModeTransitions(strategyID string) ([]ModeTransitionRecord, error) {
	var out []ModeTransitionRecord
	err := s.db.Where("strategy_id = ?", strategyID).Order("seq ASC").Find(&out).Error
	return out, err
}

// LoadRiskViolations returns every violation record for accountID in Seq order.
func (s *Store) LoadRiskViolations(accountID string) ([]RiskViolationRecord, error) {
	var out []RiskViolationRecord
	err := s.db.Where("account_id = ?", accountID).Order("seq ASC").Find(&out).Error
	return out, err
}
