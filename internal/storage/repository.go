// Package storage is the SQLite-backed durable store. The ledger append runs
// as one transaction: an in-place counter increment on the entity row plus an
// event insert, so concurrent contributors never lose updates to a
// read-modify-write race.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"fintrack/internal/core"
	"fintrack/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// golang-migrate takes ownership of the handle it is given and closes
	// it, so migrations run on their own connection, not the repository
	// pool.
	migrateDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open migration connection: %w", err)
	}
	if err := runMigrations(migrateDB); err != nil {
		migrateDB.Close()
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("prepare migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateEntity(ctx context.Context, e core.Entity) error {
	if err := e.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create entity: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entities (id, title, kind, home_currency, target_cents, owner_id, credit_cents, debit_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, string(e.Kind), string(e.HomeCurrency), e.TargetCents,
		e.OwnerID, e.CreditCents, e.DebitCents, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}

	for _, p := range e.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entity_participants (entity_id, user_id) VALUES (?, ?)`,
			e.ID, p); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create entity: %w", err)
	}

	slog.InfoContext(ctx, "Entity created",
		"id", e.ID,
		"kind", e.Kind,
		"home_currency", e.HomeCurrency,
		"target_cents", e.TargetCents)

	return nil
}

func (r *SQLiteRepository) GetEntity(ctx context.Context, id string) (core.Entity, error) {
	var (
		e         core.Entity
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, kind, home_currency, target_cents, owner_id, credit_cents, debit_cents, created_at
		 FROM entities WHERE id = ?`, id).
		Scan(&e.ID, &e.Title, &e.Kind, &e.HomeCurrency, &e.TargetCents,
			&e.OwnerID, &e.CreditCents, &e.DebitCents, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entity{}, store.ErrNotFound
	}
	if err != nil {
		return core.Entity{}, fmt.Errorf("select entity: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)

	e.Participants, err = r.participants(ctx, id)
	if err != nil {
		return core.Entity{}, err
	}

	e.Events, err = r.RecentEvents(ctx, id, 0)
	if err != nil {
		return core.Entity{}, err
	}

	return e, nil
}

func (r *SQLiteRepository) ListEntitiesByParticipant(ctx context.Context, userID string) ([]core.Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.id, e.title, e.kind, e.home_currency, e.target_cents, e.owner_id, e.credit_cents, e.debit_cents, e.created_at
		 FROM entities e
		 JOIN entity_participants p ON p.entity_id = e.id
		 WHERE p.user_id = ?
		 ORDER BY e.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("select entities by participant: %w", err)
	}
	defer rows.Close()

	var out []core.Entity
	for rows.Next() {
		var (
			e         core.Entity
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Kind, &e.HomeCurrency, &e.TargetCents,
			&e.OwnerID, &e.CreditCents, &e.DebitCents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	// Participant lists are filled in per entity; event lists stay empty in
	// listings and are loaded on demand through GetEntity or RecentEvents.
	for i := range out {
		out[i].Participants, err = r.participants(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (r *SQLiteRepository) AppendContribution(ctx context.Context, entityID string, ev core.ContributionEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	column := "credit_cents"
	if ev.Kind == core.Debit {
		column = "debit_cents"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	// In-place increment, not read-modify-write: this is what keeps
	// concurrent appends from losing each other.
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE entities SET %s = %s + ? WHERE id = ?`, column, column),
		ev.ConvertedCents, entityID)
	if err != nil {
		return fmt.Errorf("increment totals: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment totals: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO contribution_events
		 (id, entity_id, actor_id, actor_name, kind, original_cents, original_currency, converted_cents, rate, fallback, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, entityID, ev.ActorID, ev.ActorName, string(ev.Kind),
		ev.Original.Cents, string(ev.OriginalCurrency), ev.ConvertedCents,
		ev.Rate, boolToInt(ev.Fallback), formatTime(ev.OccurredAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	slog.InfoContext(ctx, "Contribution appended",
		"entity_id", entityID,
		"event_id", ev.ID,
		"kind", ev.Kind,
		"converted_cents", ev.ConvertedCents,
		"rate", ev.Rate,
		"fallback", ev.Fallback)

	return nil
}

func (r *SQLiteRepository) Totals(ctx context.Context, entityID string) (core.Totals, error) {
	var t core.Totals
	err := r.db.QueryRowContext(ctx,
		`SELECT credit_cents, debit_cents FROM entities WHERE id = ?`, entityID).
		Scan(&t.CreditCents, &t.DebitCents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Totals{}, store.ErrNotFound
	}
	if err != nil {
		return core.Totals{}, fmt.Errorf("select totals: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) RecentEvents(ctx context.Context, entityID string, limit int) ([]core.ContributionEvent, error) {
	if err := r.entityExists(ctx, entityID); err != nil {
		return nil, err
	}

	q := `SELECT id, actor_id, actor_name, kind, original_cents, original_currency, converted_cents, rate, fallback, occurred_at
	      FROM contribution_events WHERE entity_id = ?
	      ORDER BY occurred_at DESC, rowid DESC`
	args := []any{entityID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var out []core.ContributionEvent
	for rows.Next() {
		var (
			ev         core.ContributionEvent
			fallback   int
			occurredAt string
		)
		if err := rows.Scan(&ev.ID, &ev.ActorID, &ev.ActorName, &ev.Kind,
			&ev.Original.Cents, &ev.OriginalCurrency, &ev.ConvertedCents,
			&ev.Rate, &fallback, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Fallback = fallback != 0
		ev.OccurredAt = parseTime(occurredAt)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateTarget(ctx context.Context, entityID string, targetCents int64) error {
	if targetCents < 0 {
		return core.ErrNegativeTarget
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE entities SET target_cents = ? WHERE id = ?`, targetCents, entityID)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) AddParticipant(ctx context.Context, entityID, userID string) error {
	if err := r.entityExists(ctx, entityID); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO entity_participants (entity_id, user_id) VALUES (?, ?)`,
		entityID, userID)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// DeleteEntity removes the entity, its ledger, participants and any open
// invitations in one transaction. Other participants never observe a
// partially deleted entity.
func (r *SQLiteRepository) DeleteEntity(ctx context.Context, entityID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM contribution_events WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entity_participants WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete participants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("delete invitations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Entity deleted", "id", entityID)
	return nil
}

func (r *SQLiteRepository) CreateInvitation(ctx context.Context, inv core.Invitation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invitations (id, code, entity_id, created_by, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Code, inv.EntityID, inv.CreatedBy,
		formatTime(inv.ExpiresAt), formatTime(inv.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetInvitationByCode(ctx context.Context, code string) (core.Invitation, error) {
	var (
		inv       core.Invitation
		expiresAt string
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, code, entity_id, created_by, expires_at, created_at
		 FROM invitations WHERE code = ? COLLATE NOCASE`, code).
		Scan(&inv.ID, &inv.Code, &inv.EntityID, &inv.CreatedBy, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invitation{}, store.ErrNotFound
	}
	if err != nil {
		return core.Invitation{}, fmt.Errorf("select invitation: %w", err)
	}
	inv.ExpiresAt = parseTime(expiresAt)
	inv.CreatedAt = parseTime(createdAt)
	return inv, nil
}

func (r *SQLiteRepository) DeleteInvitation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete invitation: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// EntityIDs lists all entity ids for the reconcile sweep.
func (r *SQLiteRepository) EntityIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM entities ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select entity ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entity id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReconcileTotals folds the event rows and repairs the cached counters when
// they disagree. Fold, compare and repair share one transaction: an append
// committing mid-reconcile can never have its increment overwritten by a
// stale fold.
func (r *SQLiteRepository) ReconcileTotals(ctx context.Context, entityID string) (core.ReconcileResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ReconcileResult{}, fmt.Errorf("begin reconcile: %w", err)
	}
	defer tx.Rollback()

	var res core.ReconcileResult
	err = tx.QueryRowContext(ctx,
		`SELECT credit_cents, debit_cents FROM entities WHERE id = ?`, entityID).
		Scan(&res.Cached.CreditCents, &res.Cached.DebitCents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ReconcileResult{}, store.ErrNotFound
	}
	if err != nil {
		return core.ReconcileResult{}, fmt.Errorf("read cached totals: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN kind = 'credit' THEN converted_cents ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN kind = 'debit' THEN converted_cents ELSE 0 END), 0)
		 FROM contribution_events WHERE entity_id = ?`, entityID).
		Scan(&res.Fold.CreditCents, &res.Fold.DebitCents)
	if err != nil {
		return core.ReconcileResult{}, fmt.Errorf("fold totals: %w", err)
	}

	if res.Fold != res.Cached {
		if _, err := tx.ExecContext(ctx,
			`UPDATE entities SET credit_cents = ?, debit_cents = ? WHERE id = ?`,
			res.Fold.CreditCents, res.Fold.DebitCents, entityID); err != nil {
			return core.ReconcileResult{}, fmt.Errorf("repair totals: %w", err)
		}
		res.Repaired = true
	}

	if err := tx.Commit(); err != nil {
		return core.ReconcileResult{}, fmt.Errorf("commit reconcile: %w", err)
	}
	return res, nil
}

func (r *SQLiteRepository) participants(ctx context.Context, entityID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM entity_participants WHERE entity_id = ? ORDER BY user_id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, uid)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) entityExists(ctx context.Context, entityID string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ?`, entityID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check entity: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort chronologically as
// text (RFC3339Nano trims trailing zeros and breaks lexicographic order).
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
