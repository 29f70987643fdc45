/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements commission.GridStore, commission.BatchSaver and
  commission.ScopeLister, plus the policy and quote records written by the
  HTTP API. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  commission_grids: Grid entries per scope, ordered by position
  policies:         Normalized policies with their commission outcome
  quotes:           Every successful resolution, for audit

GRID ORDER:
  "First match wins" depends on entry order, so every row carries a
  position. A new entry takes MAX(position)+1 within its scope; an update
  keeps the existing position.

DECIMALS AND DATES:
  Rates and amounts are stored as TEXT decimal strings, never REAL, so a
  round trip is exact. Window dates are TEXT "YYYY-MM-DD"; NULL means
  unset (From) or open-ended (To). Premium bounds are NULL when unbounded.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/commission.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  quoter := commission.NewQuoter(store)

MIGRATION:
  Versioned goose migrations live in migrations/ and are embedded in the
  binary. New() applies any that are pending; add a new numbered file for
  every schema change, never edit an applied one.

SEE ALSO:
  - commission/store.go: Interface definitions
  - commission/store/memory.go: In-memory implementation for testing
  - store/cache/cache.go: Snapshot cache in front of this store
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/factory"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.Contains(dbPath, ":memory:") {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

//go:embed migrations/*.sql
var migrationFS embed.FS

func (s *Store) migrations() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
}

// migrate applies any pending versioned migrations.
func (s *Store) migrate() error {
	provider, err := s.migrations()
	if err != nil {
		return err
	}
	_, err = provider.Up(context.Background())
	return err
}

// SchemaVersion returns the latest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	provider, err := s.migrations()
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

// =============================================================================
// GRID STORE (commission.GridStore interface)
// =============================================================================

const gridColumns = `id, scope, line, provider, product_type, product_subtype,
	premium_min, premium_max,
	base_rate, base_from, base_to,
	reward_rate, reward_from, reward_to,
	bonus_rate, bonus_from, bonus_to,
	is_active`

// Entries returns the scope's entries in grid order.
func (s *Store) Entries(ctx context.Context, scope commission.Scope) ([]commission.GridEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+gridColumns+" FROM commission_grids WHERE scope = ? ORDER BY position",
		string(scope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query grid: %w", err)
	}
	defer rows.Close()

	entries := []commission.GridEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get retrieves a grid entry by ID.
func (s *Store) Get(ctx context.Context, scope commission.Scope, id string) (commission.GridEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+gridColumns+" FROM commission_grids WHERE scope = ? AND id = ?",
		string(scope), id,
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return commission.GridEntry{}, commission.ErrEntryNotFound
	}
	return e, err
}

// Save inserts a new entry at the end of its scope or updates one in place.
func (s *Store) Save(ctx context.Context, entry commission.GridEntry) error {
	if err := commission.PrepareSave(entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveEntry(ctx, s.db, entry)
}

// SaveAll saves every entry in one transaction.
func (s *Store) SaveAll(ctx context.Context, entries []commission.GridEntry) error {
	for _, e := range entries {
		if err := commission.PrepareSave(e); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, e := range entries {
		if err := s.saveEntry(ctx, sqlTx, e); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

func (s *Store) saveEntry(ctx context.Context, db execer, e commission.GridEntry) error {
	query := `
		INSERT INTO commission_grids
		(scope, id, position, line, provider, product_type, product_subtype,
		 premium_min, premium_max,
		 base_rate, base_from, base_to,
		 reward_rate, reward_from, reward_to,
		 bonus_rate, bonus_from, bonus_to,
		 is_active, created_at, updated_at)
		VALUES (?, ?,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM commission_grids WHERE scope = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, id) DO UPDATE SET
			line = excluded.line,
			provider = excluded.provider,
			product_type = excluded.product_type,
			product_subtype = excluded.product_subtype,
			premium_min = excluded.premium_min,
			premium_max = excluded.premium_max,
			base_rate = excluded.base_rate,
			base_from = excluded.base_from,
			base_to = excluded.base_to,
			reward_rate = excluded.reward_rate,
			reward_from = excluded.reward_from,
			reward_to = excluded.reward_to,
			bonus_rate = excluded.bonus_rate,
			bonus_from = excluded.bonus_from,
			bonus_to = excluded.bonus_to,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.ExecContext(ctx, query,
		string(e.Scope), e.ID, string(e.Scope),
		string(e.Line), e.Provider, e.ProductType, e.ProductSubtype,
		nullDecimal(e.PremiumRange.Min), nullDecimal(e.PremiumRange.Max),
		e.Base.Rate.String(), nullDate(e.Base.Effective.From), nullDate(e.Base.Effective.To),
		e.Reward.Rate.String(), nullDate(e.Reward.Effective.From), nullDate(e.Reward.Effective.To),
		e.Bonus.Rate.String(), nullDate(e.Bonus.Effective.From), nullDate(e.Bonus.Effective.To),
		e.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save grid entry %s: %w", e.ID, err)
	}
	return nil
}

// Delete removes a grid entry. Positions of later entries are left as-is;
// only their relative order matters.
func (s *Store) Delete(ctx context.Context, scope commission.Scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM commission_grids WHERE scope = ? AND id = ?",
		string(scope), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete grid entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commission.ErrEntryNotFound
	}
	return nil
}

// Scopes returns every scope holding at least one grid entry.
func (s *Store) Scopes(ctx context.Context) ([]commission.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT scope FROM commission_grids ORDER BY scope")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []commission.Scope
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, commission.Scope(scope))
	}
	return scopes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (commission.GridEntry, error) {
	var (
		e                                                          commission.GridEntry
		scope, line                                                string
		premiumMin, premiumMax                                     sql.NullString
		baseRate, rewardRate, bonusRate                            string
		baseFrom, baseTo, rewardFrom, rewardTo, bonusFrom, bonusTo sql.NullString
	)

	err := sc.Scan(
		&e.ID, &scope, &line, &e.Provider, &e.ProductType, &e.ProductSubtype,
		&premiumMin, &premiumMax,
		&baseRate, &baseFrom, &baseTo,
		&rewardRate, &rewardFrom, &rewardTo,
		&bonusRate, &bonusFrom, &bonusTo,
		&e.IsActive,
	)
	if err != nil {
		return commission.GridEntry{}, err
	}

	e.Scope = commission.Scope(scope)
	e.Line = commission.ParseLine(line)
	e.PremiumRange.Min = parseNullDecimal(premiumMin)
	e.PremiumRange.Max = parseNullDecimal(premiumMax)
	e.Base = parseComponent(baseRate, baseFrom, baseTo)
	e.Reward = parseComponent(rewardRate, rewardFrom, rewardTo)
	e.Bonus = parseComponent(bonusRate, bonusFrom, bonusTo)
	return e, nil
}

func parseComponent(rate string, from, to sql.NullString) commission.RateComponent {
	return commission.RateComponent{
		Rate: decimal.RequireFromString(rate),
		Effective: commission.EffectiveWindow{
			From: parseNullDate(from),
			To:   parseNullDate(to),
		},
	}
}

// =============================================================================
// POLICY STORE
// =============================================================================

// Commission outcomes recorded on a policy.
const (
	CommissionComputed      = "computed"
	CommissionNotConfigured = "not_configured"
)

// StoredPolicy is a normalized policy with its commission outcome.
type StoredPolicy struct {
	factory.PolicyRecord

	CommissionStatus string
	QuoteID          string // Empty when not configured
	PayloadJSON      string // Intake payload as received
	CreatedAt        time.Time
}

// SavePolicy inserts a policy record. Policy numbers are unique per scope.
func (s *Store) SavePolicy(ctx context.Context, p StoredPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPolicy(ctx, s.db, p)
}

// SavePolicyWithQuote inserts a policy and, when q is non-nil, the quote it
// references in one transaction. Either both rows land or neither does.
func (s *Store) SavePolicyWithQuote(ctx context.Context, p StoredPolicy, q *QuoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := insertPolicy(ctx, sqlTx, p); err != nil {
		return err
	}
	if q != nil {
		if err := insertQuote(ctx, sqlTx, *q); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPolicy(ctx context.Context, db execer, p StoredPolicy) error {
	query := `
		INSERT INTO policies
		(id, scope, shape, policy_number, provider, product_type, product_subtype,
		 premium, issue_date, holder_name, agent_id,
		 commission_status, quote_id, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var issue *commission.Date
	if !p.IssueDate.IsZero() {
		issue = &p.IssueDate
	}

	_, err := db.ExecContext(ctx, query,
		p.ID, string(p.Scope), p.Shape, p.PolicyNumber,
		p.Provider, p.ProductType, p.ProductSubtype,
		p.Premium.String(), nullDate(issue),
		nullString(p.HolderName), nullString(p.AgentID),
		p.CommissionStatus, nullString(p.QuoteID), nullString(p.PayloadJSON),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicatePolicy
		}
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

// ErrDuplicatePolicy is returned when a policy number already exists in scope.
var ErrDuplicatePolicy = errors.New("policy number already exists")

// ErrPolicyNotFound is returned when a policy ID does not exist in scope.
var ErrPolicyNotFound = errors.New("policy not found")

const policyColumns = `id, scope, shape, policy_number, provider, product_type, product_subtype,
	premium, issue_date, holder_name, agent_id,
	commission_status, quote_id, payload_json, created_at`

// GetPolicy retrieves a policy by ID within scope.
func (s *Store) GetPolicy(ctx context.Context, scope commission.Scope, id string) (*StoredPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+policyColumns+" FROM policies WHERE scope = ? AND id = ?",
		string(scope), id,
	)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPolicies returns a scope's policies, newest first.
func (s *Store) ListPolicies(ctx context.Context, scope commission.Scope) ([]StoredPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+policyColumns+" FROM policies WHERE scope = ? ORDER BY created_at DESC, rowid DESC",
		string(scope),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []StoredPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func scanPolicy(sc scanner) (StoredPolicy, error) {
	var (
		p                                    StoredPolicy
		scope, premium, createdAt            string
		issue, holder, agent, quote, payload sql.NullString
	)

	err := sc.Scan(
		&p.ID, &scope, &p.Shape, &p.PolicyNumber, &p.Provider, &p.ProductType, &p.ProductSubtype,
		&premium, &issue, &holder, &agent,
		&p.CommissionStatus, &quote, &payload, &createdAt,
	)
	if err != nil {
		return StoredPolicy{}, err
	}

	p.Scope = commission.Scope(scope)
	p.Premium = decimal.RequireFromString(premium)
	if d := parseNullDate(issue); d != nil {
		p.IssueDate = *d
	}
	p.HolderName = holder.String
	p.AgentID = agent.String
	p.QuoteID = quote.String
	p.PayloadJSON = payload.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

// =============================================================================
// QUOTE LOG
// =============================================================================

// QuoteRecord is one successful resolution.
type QuoteRecord struct {
	ID       string
	Scope    commission.Scope
	PolicyID string // Empty for ad-hoc quotes
	Request  commission.QuoteRequest
	Result   commission.QuoteResult

	CreatedAt time.Time
}

// SaveQuote appends a quote record.
func (s *Store) SaveQuote(ctx context.Context, q QuoteRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertQuote(ctx, s.db, q)
}

func insertQuote(ctx context.Context, db execer, q QuoteRecord) error {
	query := `
		INSERT INTO quotes
		(id, scope, policy_id, entry_id, provider, product_type, product_subtype,
		 premium, as_of, effective_base, effective_reward, effective_bonus,
		 total_rate, commission_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.ExecContext(ctx, query,
		q.ID, string(q.Scope), nullString(q.PolicyID), q.Result.Entry.ID,
		q.Request.Provider, q.Request.ProductType, q.Request.ProductSubtype,
		q.Request.PremiumAmount.String(), q.Result.AsOf.String(),
		q.Result.EffectiveBase.String(), q.Result.EffectiveReward.String(), q.Result.EffectiveBonus.String(),
		q.Result.TotalRate.String(), q.Result.CommissionAmount.StringFixed(2),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save quote: %w", err)
	}
	return nil
}

// GetQuote retrieves a quote by ID within scope.
func (s *Store) GetQuote(ctx context.Context, scope commission.Scope, id string) (*QuoteRecord, error) {
	quotes, err := s.queryQuotes(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE scope = ? AND id = ?",
		string(scope), id,
	)
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, nil
	}
	return &quotes[0], nil
}

// ListQuotes returns a scope's most recent quotes, newest first.
func (s *Store) ListQuotes(ctx context.Context, scope commission.Scope, limit int) ([]QuoteRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryQuotes(ctx,
		"SELECT "+quoteColumns+" FROM quotes WHERE scope = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		string(scope), limit,
	)
}

const quoteColumns = `id, scope, policy_id, entry_id, provider, product_type, product_subtype,
	premium, as_of, effective_base, effective_reward, effective_bonus,
	total_rate, commission_amount, created_at`

func (s *Store) queryQuotes(ctx context.Context, query string, args ...any) ([]QuoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []QuoteRecord
	for rows.Next() {
		var (
			q                                  QuoteRecord
			scope, premium, asOf, createdAt    string
			base, reward, bonus, total, amount string
			policyID                           sql.NullString
		)
		err := rows.Scan(
			&q.ID, &scope, &policyID, &q.Result.Entry.ID,
			&q.Request.Provider, &q.Request.ProductType, &q.Request.ProductSubtype,
			&premium, &asOf, &base, &reward, &bonus, &total, &amount, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		q.Scope = commission.Scope(scope)
		q.PolicyID = policyID.String
		q.Request.PremiumAmount = decimal.RequireFromString(premium)
		q.Result.AsOf, _ = commission.ParseDate(asOf)
		q.Request.AsOf = q.Result.AsOf
		q.Result.EffectiveBase = decimal.RequireFromString(base)
		q.Result.EffectiveReward = decimal.RequireFromString(reward)
		q.Result.EffectiveBonus = decimal.RequireFromString(bonus)
		q.Result.TotalRate = decimal.RequireFromString(total)
		q.Result.CommissionAmount = decimal.RequireFromString(amount)
		q.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"quotes", "policies", "commission_grids"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// ResetScope clears one scope's grids, policies and quotes.
func (s *Store) ResetScope(ctx context.Context, scope commission.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	for _, table := range []string{"quotes", "policies", "commission_grids"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table+" WHERE scope = ?", string(scope)); err != nil {
			return err
		}
	}
	return sqlTx.Commit()
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDate(d *commission.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) *decimal.Decimal {
	if !s.Valid {
		return nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func parseNullDate(s sql.NullString) *commission.Date {
	if !s.Valid {
		return nil
	}
	d, err := commission.ParseDate(s.String)
	if err != nil {
		return nil
	}
	return &d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
