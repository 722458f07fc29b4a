package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/holymark/auth"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// BunUsers implements auth.UserStore over a SQL database using Bun.
type BunUsers struct {
	db *bun.DB
}

var _ auth.UserStore = (*BunUsers)(nil)

// NewBunUsers creates a new repository.
func NewBunUsers(db *bun.DB) *BunUsers {
	return &BunUsers{db: db}
}

// CreateSchema creates the users table with its unique constraints
func (r *BunUsers) CreateSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*auth.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create users table")
	}
	return nil
}

func (r *BunUsers) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	user := new(auth.User)
	err := r.db.NewSelect().
		Model(user).
		Where("usr.email = ? OR usr.username = ?", identifier, identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "failed to find user by identifier")
	}
	return user, nil
}

func (r *BunUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user := new(auth.User)
	err := r.db.NewSelect().
		Model(user).
		Where("usr.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, "failed to find user by email")
	}
	return user, nil
}

func (r *BunUsers) FindByEmailOrUsername(ctx context.Context, email, username string) ([]*auth.User, error) {
	var users []*auth.User
	err := r.db.NewSelect().
		Model(&users).
		Where("usr.email = ? OR usr.username = ?", email, username).
		Limit(2).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*auth.User{}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query users")
	}
	return users, nil
}

func (r *BunUsers) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	record := *user
	record.ID = uuid.NewString()

	if _, err := r.db.NewInsert().Model(&record).Exec(ctx); err != nil {
		if conflict := sqlConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert user")
	}

	return &record, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ErrRecordNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// sqlConflict maps a unique violation on email or username to the taken
// field, matching Postgres and SQLite by error code. Other errors, primary
// key collisions included, return nil.
func sqlConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation || strings.HasSuffix(pgErr.ConstraintName, "_pkey") {
			return nil
		}
		return conflictFromMessage(pgErr.ConstraintName, "username")
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return nil
		}
		return conflictFromMessage(liteErr.Error(), "users.username")
	}

	return nil
}
