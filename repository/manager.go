package repository

import (
	"context"
	"database/sql"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/holymark/auth"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	KindMongo    = "mongo"
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindMemory   = "memory"
)

// Manager owns the user store selected by the connection string and the
// resources behind it.
type Manager struct {
	kind    string
	users   auth.UserStore
	close   func(context.Context) error
	indexes func(context.Context) error
}

// Kind names the backing store
func (m *Manager) Kind() string {
	return m.kind
}

func (m *Manager) Users() auth.UserStore {
	return m.users
}

// EnsureIndexes creates the unique email and username indexes for stores
// that do not get them from a schema. SQL stores create theirs in Open.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	if m.indexes == nil {
		return nil
	}
	return m.indexes(ctx)
}

// Close releases the database handle
func (m *Manager) Close(ctx context.Context) error {
	if m.close == nil {
		return nil
	}
	return m.close(ctx)
}

// Option configures Open
type Option func(*openOptions)

type openOptions struct {
	logger    auth.Logger
	debug     bool
	connectFn ConnectFunc
	database  string
}

func WithLogger(logger auth.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// WithQueryDebug logs every SQL query
func WithQueryDebug(enabled bool) Option {
	return func(o *openOptions) { o.debug = enabled }
}

// WithDatabaseName sets the MongoDB database
func WithDatabaseName(name string) Option {
	return func(o *openOptions) { o.database = name }
}

// WithMongoConnectFunc replaces the MongoDB dialer
func WithMongoConnectFunc(fn ConnectFunc) Option {
	return func(o *openOptions) { o.connectFn = fn }
}

// Open selects a store from the scheme of databaseURL:
// mongodb:// and mongodb+srv:// use MongoDB, postgres:// and postgresql://
// use Bun over pgx, sqlite: and file: use Bun over SQLite and memory://
// keeps users in process.
//
// MongoDB connects lazily on the first store call. SQL stores are opened
// and their schema created before Open returns.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Manager, error) {
	o := &openOptions{database: auth.DefaultDatabaseName}
	for _, opt := range opts {
		opt(o)
	}

	scheme, _, _ := strings.Cut(databaseURL, ":")
	switch strings.ToLower(scheme) {
	case "mongodb", "mongodb+srv":
		conn := NewMongoConnector(databaseURL).WithConnectFunc(o.connectFn).WithLogger(o.logger)
		users := NewMongoUsers(conn, o.database)
		return &Manager{
			kind:    KindMongo,
			users:   users,
			close:   conn.Close,
			indexes: users.EnsureIndexes,
		}, nil
	case "postgres", "postgresql":
		sqldb, err := sql.Open("pgx", databaseURL)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres")
		}
		return openBun(ctx, KindPostgres, bun.NewDB(sqldb, pgdialect.New()), o)
	case "sqlite", "file":
		sqldb, err := sql.Open(sqliteshim.ShimName, sqliteDSN(databaseURL))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite")
		}
		sqldb.SetMaxOpenConns(1)
		return openBun(ctx, KindSQLite, bun.NewDB(sqldb, sqlitedialect.New()), o)
	case "memory":
		return &Manager{kind: KindMemory, users: NewMemoryUsers()}, nil
	}

	return nil, goerrors.New("unsupported database url scheme", goerrors.CategoryBadInput).
		WithMetadata(map[string]any{"scheme": scheme})
}

func openBun(ctx context.Context, kind string, db *bun.DB, o *openOptions) (*Manager, error) {
	if o.debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	users := NewBunUsers(db)
	if err := users.CreateSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Manager{
		kind:  kind,
		users: users,
		close: func(context.Context) error { return db.Close() },
	}, nil
}

// sqliteDSN turns sqlite://path and sqlite:path into a driver DSN
func sqliteDSN(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "file:") {
		return databaseURL
	}
	dsn := strings.TrimPrefix(databaseURL, "sqlite:")
	dsn = strings.TrimPrefix(dsn, "//")
	if dsn == "" {
		return ":memory:"
	}
	return dsn
}
