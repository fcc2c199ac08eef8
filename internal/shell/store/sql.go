package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pemasak/pws/internal/core/deployment"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// =============================================================================
// SQLStore
// =============================================================================

// Options configures Open.
type Options struct {
	Driver  string // DriverSQLite or DriverPostgres
	DSN     string
	Migrate bool // apply embedded migrations
}

// SQLStore implements Store on SQLite or PostgreSQL.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to the database and optionally runs migrations.
func Open(opts Options) (*SQLStore, error) {
	dsn := opts.DSN
	switch opts.Driver {
	case DriverSQLite:
		dsn = withSQLiteForeignKeys(dsn)
	case DriverPostgres:
	default:
		return nil, NewStoreError("Open", "", "", fmt.Sprintf("driver %q", opts.Driver), ErrUnsupportedDriver)
	}

	db, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, NewStoreError("Open", "", "", "failed to open database", ErrConnectionFailed)
	}

	// One connection keeps :memory: databases shared and avoids SQLITE_BUSY.
	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "", fmt.Sprintf("failed to ping database: %v", err), ErrConnectionFailed)
	}

	if opts.Migrate {
		if err := runMigrations(db.DB, opts.Driver); err != nil {
			db.Close()
			return nil, NewStoreError("Open", "", "", err.Error(), ErrMigrationFailed)
		}
	}

	return &SQLStore{db: db, now: time.Now}, nil
}

// NewSQLiteStore opens a migrated SQLite store.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	return Open(Options{Driver: DriverSQLite, DSN: dsn, Migrate: true})
}

func withSQLiteForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB, driverName string) error {
	var (
		driver database.Driver
		err    error
	)
	switch driverName {
	case DriverSQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case DriverPostgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, driverName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateOwner(ctx context.Context, name string) (*Owner, error) {
	return createOwner(ctx, s.db, name, s.now())
}

func (s *SQLStore) GetOwner(ctx context.Context, name string) (*Owner, error) {
	return getOwner(ctx, s.db, name)
}

func (s *SQLStore) CreateProject(ctx context.Context, owner, name string, env deployment.Environment) (*Project, error) {
	return createProject(ctx, s.db, owner, name, env, s.now())
}

func (s *SQLStore) GetProject(ctx context.Context, owner, name string) (*Project, error) {
	return getProject(ctx, s.db, owner, name)
}

func (s *SQLStore) ListProjects(ctx context.Context, owner string) ([]Project, error) {
	return listProjects(ctx, s.db, owner)
}

func (s *SQLStore) GetEnvironment(ctx context.Context, owner, project string) (deployment.Environment, error) {
	return getEnvironment(ctx, s.db, owner, project)
}

func (s *SQLStore) SetEnvironment(ctx context.Context, owner, project string, env deployment.Environment) error {
	return setEnvironment(ctx, s.db, owner, project, env, s.now())
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		if isConnectionError(err) {
			return queryError("WithTx", "", "", err)
		}
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLStore{tx: tx, now: s.now}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLStore implements Store within a transaction.
type txSQLStore struct {
	tx  *sqlx.Tx
	now func() time.Time
}

func (s *txSQLStore) CreateOwner(ctx context.Context, name string) (*Owner, error) {
	return createOwner(ctx, s.tx, name, s.now())
}

func (s *txSQLStore) GetOwner(ctx context.Context, name string) (*Owner, error) {
	return getOwner(ctx, s.tx, name)
}

func (s *txSQLStore) CreateProject(ctx context.Context, owner, name string, env deployment.Environment) (*Project, error) {
	return createProject(ctx, s.tx, owner, name, env, s.now())
}

func (s *txSQLStore) GetProject(ctx context.Context, owner, name string) (*Project, error) {
	return getProject(ctx, s.tx, owner, name)
}

func (s *txSQLStore) ListProjects(ctx context.Context, owner string) ([]Project, error) {
	return listProjects(ctx, s.tx, owner)
}

func (s *txSQLStore) GetEnvironment(ctx context.Context, owner, project string) (deployment.Environment, error) {
	return getEnvironment(ctx, s.tx, owner, project)
}

func (s *txSQLStore) SetEnvironment(ctx context.Context, owner, project string, env deployment.Environment) error {
	return setEnvironment(ctx, s.tx, owner, project, env, s.now())
}

func (s *txSQLStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction
	return fn(s)
}

func (s *txSQLStore) Close() error {
	return nil
}

// =============================================================================
// Rows
// =============================================================================

type ownerRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
}

type projectRow struct {
	ID        string         `db:"id"`
	OwnerName string         `db:"owner_name"`
	Name      string         `db:"name"`
	Environs  sql.NullString `db:"environs"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

const projectColumns = `p.id, o.name AS owner_name, p.name, p.environs, p.created_at, p.updated_at`

func rowToOwner(row *ownerRow) *Owner {
	return &Owner{
		ID:        row.ID,
		Name:      row.Name,
		CreatedAt: parseTime(row.CreatedAt),
	}
}

func rowToProject(row *projectRow) (*Project, error) {
	env, err := decodeEnvirons(row.Environs)
	if err != nil {
		return nil, NewStoreError("GetProject", "project", row.OwnerName+"/"+row.Name, err.Error(), err)
	}
	return &Project{
		ID:          row.ID,
		Owner:       row.OwnerName,
		Name:        row.Name,
		Environment: env,
		CreatedAt:   parseTime(row.CreatedAt),
		UpdatedAt:   parseTime(row.UpdatedAt),
	}, nil
}

// decodeEnvirons treats a missing blob as an empty environment. Anything
// else must parse as a JSON object.
func decodeEnvirons(raw sql.NullString) (deployment.Environment, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return deployment.Environment{}, nil
	}
	return deployment.ParseEnvironment([]byte(raw.String))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// =============================================================================
// Owner Operations
// =============================================================================

func createOwner(ctx context.Context, exec executor, name string, now time.Time) (*Owner, error) {
	owner := &Owner{ID: uuid.NewString(), Name: name, CreatedAt: now.UTC()}

	query := exec.Rebind(`INSERT INTO project_owners (id, name, created_at) VALUES (?, ?, ?)`)
	if _, err := exec.ExecContext(ctx, query, owner.ID, owner.Name, formatTime(now)); err != nil {
		if isUniqueViolation(err) {
			return nil, NewStoreError("CreateOwner", "owner", name, "owner already exists", ErrDuplicate)
		}
		return nil, queryError("CreateOwner", "owner", name, err)
	}
	return owner, nil
}

func getOwner(ctx context.Context, exec executor, name string) (*Owner, error) {
	query := exec.Rebind(`SELECT id, name, created_at FROM project_owners WHERE name = ?`)

	var row ownerRow
	if err := exec.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetOwner", "owner", name, "owner not found", ErrNotFound)
		}
		return nil, queryError("GetOwner", "owner", name, err)
	}
	return rowToOwner(&row), nil
}

// =============================================================================
// Project Operations
// =============================================================================

func createProject(ctx context.Context, exec executor, ownerName, name string, env deployment.Environment, now time.Time) (*Project, error) {
	owner, err := getOwner(ctx, exec, ownerName)
	if err != nil {
		return nil, err
	}

	environs, err := deployment.EncodeEnvironment(env)
	if err != nil {
		return nil, NewStoreError("CreateProject", "project", name, "failed to serialize environment", ErrInvalidData)
	}

	project := &Project{
		ID:          uuid.NewString(),
		Owner:       owner.Name,
		Name:        name,
		Environment: env,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	query := exec.Rebind(`
		INSERT INTO projects (id, owner_id, name, environs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err = exec.ExecContext(ctx, query, project.ID, owner.ID, name, string(environs), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewStoreError("CreateProject", "project", ownerName+"/"+name, "project already exists", ErrDuplicate)
		}
		return nil, queryError("CreateProject", "project", ownerName+"/"+name, err)
	}
	return project, nil
}

func getProject(ctx context.Context, exec executor, owner, name string) (*Project, error) {
	query := exec.Rebind(`
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN project_owners o ON o.id = p.owner_id
		WHERE o.name = ? AND p.name = ?`)

	var row projectRow
	if err := exec.GetContext(ctx, &row, query, owner, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetProject", "project", owner+"/"+name, "project not found", ErrNotFound)
		}
		return nil, queryError("GetProject", "project", owner+"/"+name, err)
	}
	return rowToProject(&row)
}

func listProjects(ctx context.Context, exec executor, owner string) ([]Project, error) {
	query := exec.Rebind(`
		SELECT ` + projectColumns + `
		FROM projects p
		JOIN project_owners o ON o.id = p.owner_id
		WHERE o.name = ?
		ORDER BY p.name`)

	var rows []projectRow
	if err := exec.SelectContext(ctx, &rows, query, owner); err != nil {
		return nil, queryError("ListProjects", "project", owner, err)
	}

	projects := make([]Project, 0, len(rows))
	for i := range rows {
		p, err := rowToProject(&rows[i])
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// =============================================================================
// Environment Operations
// =============================================================================

func getEnvironment(ctx context.Context, exec executor, owner, project string) (deployment.Environment, error) {
	query := exec.Rebind(`
		SELECT p.environs
		FROM projects p
		JOIN project_owners o ON o.id = p.owner_id
		WHERE o.name = ? AND p.name = ?`)

	var environs sql.NullString
	if err := exec.GetContext(ctx, &environs, query, owner, project); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetEnvironment", "project", owner+"/"+project, "project not found", ErrNotFound)
		}
		return nil, queryError("GetEnvironment", "project", owner+"/"+project, err)
	}

	env, err := decodeEnvirons(environs)
	if err != nil {
		return nil, NewStoreError("GetEnvironment", "project", owner+"/"+project, err.Error(), err)
	}
	return env, nil
}

func setEnvironment(ctx context.Context, exec executor, owner, project string, env deployment.Environment, now time.Time) error {
	environs, err := deployment.EncodeEnvironment(env)
	if err != nil {
		return NewStoreError("SetEnvironment", "project", owner+"/"+project, "failed to serialize environment", ErrInvalidData)
	}

	query := exec.Rebind(`
		UPDATE projects SET environs = ?, updated_at = ?
		WHERE name = ? AND owner_id = (SELECT id FROM project_owners WHERE name = ?)`)
	result, err := exec.ExecContext(ctx, query, string(environs), formatTime(now), project, owner)
	if err != nil {
		return queryError("SetEnvironment", "project", owner+"/"+project, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return queryError("SetEnvironment", "project", owner+"/"+project, err)
	}
	if rows == 0 {
		return NewStoreError("SetEnvironment", "project", owner+"/"+project, "project not found", ErrNotFound)
	}
	return nil
}
