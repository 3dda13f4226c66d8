package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/repository"
)

const accountsTable = "authority.accounts"

var accountColumns = []string{
	"id",
	"role",
	"password_hash",
	"is_active",
	"is_locked",
	"failed_attempts",
	"locked_until",
	"password_created_at",
	"last_password_change",
	"password_expires_at",
	"must_change_password",
	"is_temporary_password",
	"password_history",
	"created_at",
	"created_by",
	"version",
}

// AccountRepository implements port.AccountRepository using PostgreSQL.
// The version column backs optimistic concurrency: updates are conditional
// on the version read, and every successful write bumps it.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository wires a PostgreSQL-backed account repository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithExecutor returns a repository bound to the supplied executor,
// primarily for tests and transactions.
func (r *AccountRepository) WithExecutor(exec pgExecutor) *AccountRepository {
	if exec == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    exec,
		builder: r.builder,
	}
}

// Create inserts a new account row at version zero.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	query := r.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(
			account.ID,
			account.Role,
			account.PasswordHash,
			account.IsActive,
			account.IsLocked,
			account.FailedAttempts,
			account.LockedUntil,
			account.PasswordCreatedAt,
			account.LastPasswordChange,
			account.PasswordExpiresAt,
			account.MustChangePassword,
			account.IsTemporaryPassword,
			account.PasswordHistory,
			account.CreatedAt,
			account.CreatedBy,
			account.Version,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, sql, args...); err != nil {
		return classify("insert account", err)
	}

	return nil
}

// GetByID retrieves an account by its canonical identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Update writes the account iff the stored version matches expectedVersion,
// bumping the version on success and returning the refreshed record. A
// missing row resolves to ErrNotFound; a stale version to ErrConflict.
func (r *AccountRepository) Update(ctx context.Context, account domain.Account, expectedVersion int64) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Update(accountsTable).
		Set("role", account.Role).
		Set("password_hash", account.PasswordHash).
		Set("is_active", account.IsActive).
		Set("is_locked", account.IsLocked).
		Set("failed_attempts", account.FailedAttempts).
		Set("locked_until", account.LockedUntil).
		Set("password_created_at", account.PasswordCreatedAt).
		Set("last_password_change", account.LastPasswordChange).
		Set("password_expires_at", account.PasswordExpiresAt).
		Set("must_change_password", account.MustChangePassword).
		Set("is_temporary_password", account.IsTemporaryPassword).
		Set("password_history", account.PasswordHistory).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": account.ID, "version": expectedVersion}).
		Suffix("RETURNING " + joinColumns(accountColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update account sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	updated, err := scanAccount(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// No row matched id+version: distinguish a missing account from a
	// concurrent writer having bumped the version.
	if _, getErr := r.GetByID(ctx, account.ID); getErr != nil {
		return nil, getErr
	}
	return nil, repository.ErrConflict
}

// List returns accounts matching the filter, newest first. Administrative
// listings only; the authentication hot path is always a keyed GetByID.
func (r *AccountRepository) List(ctx context.Context, filter port.AccountFilter) ([]domain.Account, error) {
	query := r.builder.
		Select(accountColumns...).
		From(accountsTable).
		OrderBy("created_at DESC")

	if filter.Role != nil {
		query = query.Where(squirrel.Eq{"role": *filter.Role})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list accounts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list accounts", err)
	}

	return accounts, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account     domain.Account
		lockedUntil *time.Time
		createdBy   *string
	)

	if err := row.Scan(
		&account.ID,
		&account.Role,
		&account.PasswordHash,
		&account.IsActive,
		&account.IsLocked,
		&account.FailedAttempts,
		&lockedUntil,
		&account.PasswordCreatedAt,
		&account.LastPasswordChange,
		&account.PasswordExpiresAt,
		&account.MustChangePassword,
		&account.IsTemporaryPassword,
		&account.PasswordHistory,
		&account.CreatedAt,
		&createdBy,
		&account.Version,
	); err != nil {
		return nil, classify("scan account", err)
	}

	account.LockedUntil = lockedUntil
	account.CreatedBy = createdBy

	return &account, nil
}

func joinColumns(columns []string) string {
	out := ""
	for i, col := range columns {
		if i > 0 {
			out += ", "
		}
		out += col
	}
	return out
}

var _ port.AccountRepository = (*AccountRepository)(nil)
