package tag

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines tag persistence. All EPC arguments must already be
// normalized; the repository does not re-normalize.
type Repository interface {
	Create(ctx context.Context, t *Tag) error
	GetByEPC(ctx context.Context, epc string) (*Tag, error)
	List(ctx context.Context, includeInactive bool) ([]Tag, error)
	Update(ctx context.Context, t *Tag) error
	SetStatus(ctx context.Context, epc string, status Status) error
	AliasSet(ctx context.Context) (map[string]struct{}, error)
	Count(ctx context.Context) (int, error)
	InsertBatch(ctx context.Context, tags []Tag) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a SQLite-backed tag repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const tagColumns = "epc, alias, alias_group, room_number, notes, status, created_at, updated_at"

// Create inserts a new tag. EPC and alias uniqueness are checked inside
// the insert transaction, so two concurrent creations that picked the same
// generated alias cannot both commit.
func (r *SQLiteRepository) Create(ctx context.Context, t *Tag) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tag insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags WHERE epc = ?", t.EPC).Scan(&exists); err != nil {
		return fmt.Errorf("checking epc uniqueness: %w", err)
	}
	if exists > 0 {
		return ErrDuplicateEPC
	}

	if err := checkAliasFree(ctx, tx, t.Alias, ""); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	t.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	t.UpdatedAt = t.CreatedAt

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tags (epc, alias, alias_group, room_number, notes, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.EPC, t.Alias, nullString(string(t.AliasGroup)), nullString(t.RoomNumber),
		nullString(t.Notes), string(t.Status), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return classifyUnique(err)
		}
		return fmt.Errorf("inserting tag: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tag insert: %w", err)
	}
	return nil
}

// GetByEPC retrieves a tag by its normalized identifier.
func (r *SQLiteRepository) GetByEPC(ctx context.Context, epc string) (*Tag, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+tagColumns+" FROM tags WHERE epc = ?", epc)
	return scanTag(row)
}

// List returns tags ordered by alias. Inactive tags are included only on
// request; they stay queryable because their aliases remain reserved.
func (r *SQLiteRepository) List(ctx context.Context, includeInactive bool) ([]Tag, error) {
	query := "SELECT " + tagColumns + " FROM tags"
	if !includeInactive {
		query += " WHERE status = 'active'"
	}
	query += " ORDER BY alias ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}

	if tags == nil {
		tags = []Tag{}
	}
	return tags, nil
}

// Update rewrites a tag's mutable fields. If the alias changed, uniqueness
// is re-checked in the same transaction, excluding the tag's own row.
func (r *SQLiteRepository) Update(ctx context.Context, t *Tag) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tag update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := checkAliasFree(ctx, tx, t.Alias, t.EPC); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := tx.ExecContext(ctx,
		`UPDATE tags SET alias = ?, alias_group = ?, room_number = ?, notes = ?, status = ?, updated_at = ?
		 WHERE epc = ?`,
		t.Alias, nullString(string(t.AliasGroup)), nullString(t.RoomNumber),
		nullString(t.Notes), string(t.Status), now, t.EPC,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return classifyUnique(err)
		}
		return fmt.Errorf("updating tag: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tag update: %w", err)
	}
	return nil
}

// SetStatus flips a tag's lifecycle state. The row and its alias survive
// deactivation.
func (r *SQLiteRepository) SetStatus(ctx context.Context, epc string, status Status) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE tags SET status = ?, updated_at = ? WHERE epc = ?`,
		string(status), now, epc,
	)
	if err != nil {
		return fmt.Errorf("setting tag status: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AliasSet returns every alias currently held, active or inactive.
// Deactivated tags keep their alias reserved, so the generator never
// re-issues a name that an old tag still answers to in historical data.
func (r *SQLiteRepository) AliasSet(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT alias FROM tags")
	if err != nil {
		return nil, fmt.Errorf("loading alias set: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("scanning alias: %w", err)
		}
		set[alias] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aliases: %w", err)
	}
	return set, nil
}

// Count returns the total number of tags, regardless of status.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting tags: %w", err)
	}
	return count, nil
}

// InsertBatch inserts tags in a single transaction, used by mirror
// seeding. Rows whose EPC or alias collides with one already inserted are
// skipped, not fatal. Returns the number inserted.
func (r *SQLiteRepository) InsertBatch(ctx context.Context, tags []Tag) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning batch insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, t := range tags {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags (epc, alias, alias_group, room_number, notes, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.EPC, t.Alias, nullString(string(t.AliasGroup)), nullString(t.RoomNumber),
			nullString(t.Notes), string(t.Status), now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting tag %s: %w", t.EPC, err)
		}
		// INSERT OR IGNORE reports zero rows for a skipped collision.
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("counting insert of tag %s: %w", t.EPC, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch insert: %w", err)
	}
	return inserted, nil
}

// checkAliasFree verifies inside the transaction that alias is not held by
// any tag other than excludeEPC.
func checkAliasFree(ctx context.Context, tx *sql.Tx, alias, excludeEPC string) error {
	var held int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tags WHERE alias = ? AND epc != ?", alias, excludeEPC,
	).Scan(&held)
	if err != nil {
		return fmt.Errorf("checking alias uniqueness: %w", err)
	}
	if held > 0 {
		return ErrAliasConflict
	}
	return nil
}

// classifyUnique maps a UNIQUE violation to the right domain error based
// on which constraint fired.
func classifyUnique(err error) error {
	if strings.Contains(err.Error(), "tags.alias") {
		return ErrAliasConflict
	}
	return ErrDuplicateEPC
}

func scanTag(s interface{ Scan(dest ...any) error }) (*Tag, error) {
	var t Tag
	var aliasGroup, roomNumber, notes sql.NullString
	var status, createdAt, updatedAt string

	err := s.Scan(&t.EPC, &t.Alias, &aliasGroup, &roomNumber, &notes, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning tag: %w", err)
	}

	t.AliasGroup = AliasGroup(aliasGroup.String)
	t.RoomNumber = roomNumber.String
	t.Notes = notes.String
	t.Status = Status(status)
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
