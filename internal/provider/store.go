package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx used by the store. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists provider registrations.
type Store struct {
	db Querier
}

// NewStore creates a provider store over the given querier.
func NewStore(db Querier) *Store {
	return &Store{db: db}
}

const providerColumns = `id, user_id, name, description, type, url, is_active, ai_generated, capabilities, tools, created_at, updated_at`

// Create inserts a provider and fills in its generated ID and timestamps.
// A concurrent registration of the same URL surfaces as ErrDuplicate.
func (s *Store) Create(ctx context.Context, p *Provider) error {
	caps, err := json.Marshal(p.Capabilities)
	if err != nil {
		return fmt.Errorf("marshal capabilities: %w", err)
	}
	snapshot, err := json.Marshal(p.Tools)
	if err != nil {
		return fmt.Errorf("marshal tool snapshot: %w", err)
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO providers (user_id, name, description, type, url, is_active, ai_generated, capabilities, tools)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.UserID, p.Name, p.Description, string(p.Kind), p.URL, p.Active, p.AIGenerated, caps, snapshot,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert provider: %w", err)
	}
	return nil
}

// ByUser returns all of the user's providers in registration order.
func (s *Store) ByUser(ctx context.Context, userID string) ([]Provider, error) {
	return s.list(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE user_id = $1
		ORDER BY created_at ASC`, userID)
}

// ActiveByUser returns the user's active providers in registration order.
// This ordering is what makes tool merge results reproducible across turns.
func (s *Store) ActiveByUser(ctx context.Context, userID string) ([]Provider, error) {
	return s.list(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE user_id = $1 AND is_active
		ORDER BY created_at ASC`, userID)
}

func (s *Store) list(ctx context.Context, query, userID string) ([]Provider, error) {
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return out, nil
}

// ByID returns the provider if it exists and belongs to the user.
func (s *Store) ByID(ctx context.Context, id uuid.UUID, userID string) (*Provider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+providerColumns+`
		FROM providers
		WHERE id = $1 AND user_id = $2`, id, userID)
	p, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ExistsByUserURL reports whether the user already registered this exact
// URL. Matching is string equality; no normalization.
func (s *Store) ExistsByUserURL(ctx context.Context, userID, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM providers WHERE user_id = $1 AND url = $2)`,
		userID, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check duplicate provider: %w", err)
	}
	return exists, nil
}

// Toggle flips the provider's active flag and returns the updated record.
func (s *Store) Toggle(ctx context.Context, id uuid.UUID, userID string) (*Provider, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE providers
		SET is_active = NOT is_active, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+providerColumns, id, userID)
	p, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes the provider.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM providers WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProvider(row pgx.Row) (Provider, error) {
	var (
		p        Provider
		kind     string
		caps     []byte
		snapshot []byte
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &kind, &p.URL,
		&p.Active, &p.AIGenerated, &caps, &snapshot, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provider{}, pgx.ErrNoRows
		}
		return Provider{}, fmt.Errorf("scan provider: %w", err)
	}
	p.Kind = TransportKind(kind)
	if len(caps) > 0 {
		if err := json.Unmarshal(caps, &p.Capabilities); err != nil {
			return Provider{}, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &p.Tools); err != nil {
			return Provider{}, fmt.Errorf("decode tool snapshot: %w", err)
		}
	}
	return p, nil
}
