package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"potshare/internal/core"
)

// Driver selects the SQL dialect.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// IsValid returns true if the driver is supported.
func (d Driver) IsValid() bool {
	return d == DriverSQLite || d == DriverPostgres
}

func (d Driver) sqlDriverName() string {
	return string(d)
}

// SQLiteDSN adds the pragmas the repository relies on to a database path.
func SQLiteDSN(dbPath string) string {
	return dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

type Repository struct {
	db     *sql.DB
	driver Driver
	now    func() time.Time
	newID  func() string
}

// NewSQLiteRepository opens (and migrates) a SQLite database at dbPath.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(DriverSQLite, SQLiteDSN(dbPath))
}

// NewPostgresRepository opens (and migrates) a PostgreSQL database.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return Open(DriverPostgres, dsn)
}

// Open connects to the database, pings it and runs migrations.
func Open(driver Driver, dsn string) (*Repository, error) {
	if !driver.IsValid() {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(driver.sqlDriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(driver, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:     db,
		driver: driver,
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Driver returns the dialect in use.
func (r *Repository) Driver() Driver {
	return r.driver
}

// rebind rewrites ? placeholders to $n for postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// withTx runs fn in a transaction. Any error rolls the whole unit back.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(v int64) time.Time {
	return time.Unix(0, v).UTC()
}

// Pots

// CreatePot inserts a pot. A colliding invite code yields ErrInviteCodeTaken.
func (r *Repository) CreatePot(ctx context.Context, name, inviteCode string) (core.Pot, error) {
	pot := core.Pot{
		ID:         r.newID(),
		Name:       name,
		InviteCode: inviteCode,
		CreatedAt:  r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO pots (id, name, invite_code, created_at) VALUES (?, ?, ?, ?)`),
		pot.ID, pot.Name, pot.InviteCode, toUnix(pot.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Pot{}, ErrInviteCodeTaken
		}
		return core.Pot{}, fmt.Errorf("create pot: %w", err)
	}

	slog.InfoContext(ctx, "Pot saved", "id", pot.ID, "driver", r.driver)
	return pot, nil
}

const potColumns = `id, name, invite_code, created_at`

func scanPot(row interface{ Scan(...any) error }) (core.Pot, error) {
	var (
		p         core.Pot
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.InviteCode, &createdAt); err != nil {
		return core.Pot{}, err
	}
	p.CreatedAt = fromUnix(createdAt)
	return p, nil
}

// GetPot returns a pot by id.
func (r *Repository) GetPot(ctx context.Context, id string) (core.Pot, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+potColumns+` FROM pots WHERE id = ?`), id)
	pot, err := scanPot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Pot{}, ErrNotFound
	}
	if err != nil {
		return core.Pot{}, fmt.Errorf("get pot: %w", err)
	}
	return pot, nil
}

// GetPotByInviteCode resolves an invite code.
func (r *Repository) GetPotByInviteCode(ctx context.Context, code string) (core.Pot, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+potColumns+` FROM pots WHERE invite_code = ?`), code)
	pot, err := scanPot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Pot{}, ErrNotFound
	}
	if err != nil {
		return core.Pot{}, fmt.Errorf("get pot by invite code: %w", err)
	}
	return pot, nil
}

// ListPots returns every pot, oldest first.
func (r *Repository) ListPots(ctx context.Context) ([]core.Pot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+potColumns+` FROM pots ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list pots: %w", err)
	}
	defer rows.Close()

	var pots []core.Pot
	for rows.Next() {
		p, err := scanPot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pot: %w", err)
		}
		pots = append(pots, p)
	}
	return pots, rows.Err()
}

// Participants

// CreateParticipant adds a participant to a pot.
func (r *Repository) CreateParticipant(ctx context.Context, potID, name string) (core.Participant, error) {
	p := core.Participant{
		ID:        r.newID(),
		PotID:     potID,
		Name:      name,
		CreatedAt: r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO participants (id, pot_id, name, created_at) VALUES (?, ?, ?, ?)`),
		p.ID, p.PotID, p.Name, toUnix(p.CreatedAt))
	if err != nil {
		return core.Participant{}, fmt.Errorf("create participant: %w", err)
	}

	slog.InfoContext(ctx, "Participant saved", "id", p.ID, "pot_id", potID)
	return p, nil
}

// ListParticipants returns a pot's participants in creation order.
func (r *Repository) ListParticipants(ctx context.Context, potID string) ([]core.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT id, pot_id, name, created_at FROM participants WHERE pot_id = ? ORDER BY created_at, id`),
		potID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	participants := []core.Participant{}
	for rows.Next() {
		var (
			p         core.Participant
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.PotID, &p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.CreatedAt = fromUnix(createdAt)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// ParticipantSet loads the authoritative member ids of a pot.
func (r *Repository) ParticipantSet(ctx context.Context, potID string) (core.ParticipantSet, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id FROM participants WHERE pot_id = ?`), potID)
	if err != nil {
		return nil, fmt.Errorf("load participant ids: %w", err)
	}
	defer rows.Close()

	set := core.NewParticipantSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant id: %w", err)
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

// Contributions

// CreateContribution appends a contribution.
func (r *Repository) CreateContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	c.ID = r.newID()
	c.CreatedAt = r.now().UTC()
	if c.OccurredAt.IsZero() {
		c.OccurredAt = c.CreatedAt
	}

	var note sql.NullString
	if c.Note != "" {
		note = sql.NullString{String: c.Note, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		r.rebind(`INSERT INTO contributions (id, pot_id, participant_id, amount_cents, note, occurred_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.PotID, c.ParticipantID, c.Amount.Cents, note, toUnix(c.OccurredAt), toUnix(c.CreatedAt))
	if err != nil {
		return core.Contribution{}, fmt.Errorf("create contribution: %w", err)
	}

	slog.InfoContext(ctx, "Contribution saved",
		"id", c.ID,
		"pot_id", c.PotID,
		"participant_id", c.ParticipantID,
		"amount_cents", c.Amount.Cents)
	return c, nil
}

// ListContributions returns a pot's contributions, newest first.
func (r *Repository) ListContributions(ctx context.Context, potID string) ([]core.Contribution, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT id, pot_id, participant_id, amount_cents, note, occurred_at, created_at
			FROM contributions WHERE pot_id = ? ORDER BY occurred_at DESC, created_at DESC`),
		potID)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	contributions := []core.Contribution{}
	for rows.Next() {
		var (
			c                     core.Contribution
			amount                any
			note                  sql.NullString
			occurredAt, createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.PotID, &c.ParticipantID, &amount, &note, &occurredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.Amount = core.AmountFromStored(amount)
		c.Note = note.String
		c.OccurredAt = fromUnix(occurredAt)
		c.CreatedAt = fromUnix(createdAt)
		contributions = append(contributions, c)
	}
	return contributions, rows.Err()
}

// ContributionEntries returns (participant, amount) pairs for the aggregator.
func (r *Repository) ContributionEntries(ctx context.Context, potID string) ([]core.AmountEntry, error) {
	return r.amountEntries(ctx, `SELECT participant_id, amount_cents FROM contributions WHERE pot_id = ?`, potID)
}

// SplitEntries returns (participant, amount) pairs of every split in a pot.
func (r *Repository) SplitEntries(ctx context.Context, potID string) ([]core.AmountEntry, error) {
	return r.amountEntries(ctx, `SELECT participant_id, amount_cents FROM expense_splits WHERE pot_id = ?`, potID)
}

func (r *Repository) amountEntries(ctx context.Context, query, potID string) ([]core.AmountEntry, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), potID)
	if err != nil {
		return nil, fmt.Errorf("query amounts: %w", err)
	}
	defer rows.Close()

	var entries []core.AmountEntry
	for rows.Next() {
		var (
			participantID string
			amount        any
		)
		if err := rows.Scan(&participantID, &amount); err != nil {
			return nil, fmt.Errorf("scan amount: %w", err)
		}
		entries = append(entries, core.AmountEntry{
			ParticipantID: participantID,
			Amount:        core.AmountFromStored(amount),
		})
	}
	return entries, rows.Err()
}

// Expenses

// CreateExpense writes the expense row and its splits in one transaction.
// If any split fails to insert, the expense row is rolled back with it.
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense, splits []core.Split) (core.Expense, error) {
	e.ID = r.newID()
	e.CreatedAt = r.now().UTC()
	if e.OccurredAt.IsZero() {
		e.OccurredAt = e.CreatedAt
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			r.rebind(`INSERT INTO expenses (id, pot_id, description, total_cents, paid_by_participant_id, occurred_at, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.PotID, e.Description, e.Total.Cents, nullString(e.PayerID),
			toUnix(e.OccurredAt), toUnix(e.CreatedAt), toUnix(e.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		return r.insertSplits(ctx, tx, e.ID, e.PotID, splits)
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	e.Splits = toExpenseSplits(e.ID, e.PotID, splits)
	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"pot_id", e.PotID,
		"total_cents", e.Total.Cents,
		"splits", len(splits))
	return e, nil
}

// UpdateExpense rewrites an expense and replaces its whole split set in one
// transaction. Returns ErrNotFound if the expense is not in the pot.
func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense, splits []core.Split) error {
	updatedAt := r.now().UTC()
	if e.OccurredAt.IsZero() {
		e.OccurredAt = updatedAt
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			r.rebind(`UPDATE expenses
				SET description = ?, total_cents = ?, paid_by_participant_id = ?, occurred_at = ?, updated_at = ?
				WHERE id = ? AND pot_id = ?`),
			e.Description, e.Total.Cents, nullString(e.PayerID), toUnix(e.OccurredAt), toUnix(updatedAt),
			e.ID, e.PotID)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update expense rows: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}

		if _, err := tx.ExecContext(ctx,
			r.rebind(`DELETE FROM expense_splits WHERE expense_id = ? AND pot_id = ?`),
			e.ID, e.PotID); err != nil {
			return fmt.Errorf("delete splits: %w", err)
		}
		return r.insertSplits(ctx, tx, e.ID, e.PotID, splits)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update expense %s: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Expense updated",
		"id", e.ID,
		"pot_id", e.PotID,
		"total_cents", e.Total.Cents,
		"splits", len(splits))
	return nil
}

func (r *Repository) insertSplits(ctx context.Context, tx *sql.Tx, expenseID, potID string, splits []core.Split) error {
	stmt, err := tx.PrepareContext(ctx,
		r.rebind(`INSERT INTO expense_splits (expense_id, pot_id, participant_id, amount_cents) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("prepare split insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range splits {
		if _, err := stmt.ExecContext(ctx, expenseID, potID, s.ParticipantID, s.Amount.Cents); err != nil {
			return fmt.Errorf("insert split for participant %s: %w", s.ParticipantID, err)
		}
	}
	return nil
}

const expenseSelect = `SELECT e.id, e.pot_id, e.description, e.total_cents, e.paid_by_participant_id, p.name,
		e.occurred_at, e.created_at
	FROM expenses e
	LEFT JOIN participants p ON p.id = e.paid_by_participant_id`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e                     core.Expense
		total                 any
		payerID, payerName    sql.NullString
		occurredAt, createdAt int64
	)
	if err := row.Scan(&e.ID, &e.PotID, &e.Description, &total, &payerID, &payerName, &occurredAt, &createdAt); err != nil {
		return core.Expense{}, err
	}
	e.Total = core.AmountFromStored(total)
	e.PayerID = payerID.String
	e.PayerName = payerName.String
	e.OccurredAt = fromUnix(occurredAt)
	e.CreatedAt = fromUnix(createdAt)
	e.Splits = []core.ExpenseSplit{}
	return e, nil
}

// GetExpense returns one expense of a pot with its splits.
func (r *Repository) GetExpense(ctx context.Context, potID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(expenseSelect+` WHERE e.id = ? AND e.pot_id = ?`), id, potID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	splits, err := r.loadSplits(ctx, `s.expense_id = ?`, id)
	if err != nil {
		return core.Expense{}, err
	}
	e.Splits = append(e.Splits, splits[id]...)
	return e, nil
}

// ListExpenses returns a pot's expenses, most recent first, with splits.
func (r *Repository) ListExpenses(ctx context.Context, potID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(expenseSelect+` WHERE e.pot_id = ? ORDER BY e.occurred_at DESC, e.created_at DESC`), potID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	rows.Close()

	splits, err := r.loadSplits(ctx, `s.pot_id = ?`, potID)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Splits = append(expenses[i].Splits, splits[expenses[i].ID]...)
	}
	return expenses, nil
}

// loadSplits groups splits by expense id, preserving insertion order.
func (r *Repository) loadSplits(ctx context.Context, where string, arg string) (map[string][]core.ExpenseSplit, error) {
	rows, err := r.db.QueryContext(ctx,
		r.rebind(`SELECT s.expense_id, s.pot_id, s.participant_id, p.name, s.amount_cents
			FROM expense_splits s
			LEFT JOIN participants p ON p.id = s.participant_id
			WHERE `+where+` ORDER BY s.id`), arg)
	if err != nil {
		return nil, fmt.Errorf("load splits: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.ExpenseSplit)
	for rows.Next() {
		var (
			s      core.ExpenseSplit
			name   sql.NullString
			amount any
		)
		if err := rows.Scan(&s.ExpenseID, &s.PotID, &s.ParticipantID, &name, &amount); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		s.ParticipantName = name.String
		s.Amount = core.AmountFromStored(amount)
		out[s.ExpenseID] = append(out[s.ExpenseID], s)
	}
	return out, rows.Err()
}

func toExpenseSplits(expenseID, potID string, splits []core.Split) []core.ExpenseSplit {
	out := make([]core.ExpenseSplit, len(splits))
	for i, s := range splits {
		out[i] = core.ExpenseSplit{
			ExpenseID:     expenseID,
			PotID:         potID,
			ParticipantID: s.ParticipantID,
			Amount:        s.Amount,
		}
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
