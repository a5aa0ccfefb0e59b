package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/core/resources"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Strategy Operations
// =============================================================================

// strategyRow represents a strategy row in the database.
type strategyRow struct {
	Name          string `db:"name"`
	Containers    string `db:"containers"`
	Dependencies  string `db:"dependencies"`
	Policy        string `db:"policy"`
	RestartPolicy string `db:"restart_policy"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

// PutStrategy inserts or replaces a strategy by name.
func (s *SQLiteStore) PutStrategy(ctx context.Context, strategy *domain.Strategy) error {
	row, err := strategyToRow(strategy)
	if err != nil {
		return NewStoreError("PutStrategy", "strategy", strategy.Name, err.Error(), ErrInvalidData)
	}

	query := `
		INSERT INTO strategies (name, containers, dependencies, policy, restart_policy, created_at, updated_at)
		VALUES (:name, :containers, :dependencies, :policy, :restart_policy, :created_at, :updated_at)
		ON CONFLICT(name) DO UPDATE SET
			containers = excluded.containers,
			dependencies = excluded.dependencies,
			policy = excluded.policy,
			restart_policy = excluded.restart_policy,
			updated_at = excluded.updated_at`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError("PutStrategy", "strategy", strategy.Name, err.Error(), err)
	}
	return nil
}

// GetStrategy fetches a strategy by name.
func (s *SQLiteStore) GetStrategy(ctx context.Context, name string) (*domain.Strategy, error) {
	var row strategyRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM strategies WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetStrategy", "strategy", name, "not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetStrategy", "strategy", name, err.Error(), err)
	}
	return rowToStrategy(&row)
}

// DeleteStrategy removes a strategy by name.
func (s *SQLiteStore) DeleteStrategy(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM strategies WHERE name = ?`, name)
	if err != nil {
		return NewStoreError("DeleteStrategy", "strategy", name, err.Error(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewStoreError("DeleteStrategy", "strategy", name, "not found", ErrNotFound)
	}
	return nil
}

// ListStrategies returns stored strategies ordered by name.
func (s *SQLiteStore) ListStrategies(ctx context.Context, opts ListOptions) ([]domain.Strategy, error) {
	opts = opts.Normalize()

	var rows []strategyRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM strategies ORDER BY name LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListStrategies", "strategy", "", err.Error(), err)
	}

	out := make([]domain.Strategy, 0, len(rows))
	for i := range rows {
		strategy, err := rowToStrategy(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *strategy)
	}
	return out, nil
}

func strategyToRow(strategy *domain.Strategy) (*strategyRow, error) {
	containers, err := json.Marshal(strategy.Containers)
	if err != nil {
		return nil, err
	}
	dependencies, err := json.Marshal(strategy.Dependencies)
	if err != nil {
		return nil, err
	}
	policy, err := json.Marshal(strategy.Policy)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	return &strategyRow{
		Name:          strategy.Name,
		Containers:    string(containers),
		Dependencies:  string(dependencies),
		Policy:        string(policy),
		RestartPolicy: strategy.RestartPolicy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func rowToStrategy(row *strategyRow) (*domain.Strategy, error) {
	strategy := &domain.Strategy{
		Name:          row.Name,
		RestartPolicy: row.RestartPolicy,
		Dependencies:  make(map[string][]domain.Dependency),
		Policy:        resources.NewPolicy(),
	}
	if err := json.Unmarshal([]byte(row.Containers), &strategy.Containers); err != nil {
		return nil, NewStoreError("rowToStrategy", "strategy", row.Name, err.Error(), ErrInvalidData)
	}
	if row.Dependencies != "" {
		if err := json.Unmarshal([]byte(row.Dependencies), &strategy.Dependencies); err != nil {
			return nil, NewStoreError("rowToStrategy", "strategy", row.Name, err.Error(), ErrInvalidData)
		}
	}
	if row.Policy != "" {
		if err := json.Unmarshal([]byte(row.Policy), &strategy.Policy); err != nil {
			return nil, NewStoreError("rowToStrategy", "strategy", row.Name, err.Error(), ErrInvalidData)
		}
	}
	return strategy, nil
}

// =============================================================================
// Deployment Operations
// =============================================================================

// deploymentRow represents a deployment record row in the database.
type deploymentRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	StrategyName string `db:"strategy_name"`
	NetworkName  string `db:"network_name"`
	Status       string `db:"status"`
	Containers   string `db:"containers"`
	Errors       string `db:"errors"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

// PutDeployment inserts or replaces a deployment record by ID. Deployment
// names are unique; reusing a name under a different ID fails.
func (s *SQLiteStore) PutDeployment(ctx context.Context, deployment *domain.Deployment) error {
	row, err := deploymentToRow(deployment)
	if err != nil {
		return NewStoreError("PutDeployment", "deployment", deployment.Name, err.Error(), ErrInvalidData)
	}

	query := `
		INSERT INTO deployments (id, name, strategy_name, network_name, status, containers, errors, created_at, updated_at)
		VALUES (:id, :name, :strategy_name, :network_name, :status, :containers, :errors, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			strategy_name = excluded.strategy_name,
			network_name = excluded.network_name,
			status = excluded.status,
			containers = excluded.containers,
			errors = excluded.errors,
			updated_at = excluded.updated_at`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("PutDeployment", "deployment", deployment.Name, "name already in use", ErrDuplicateName)
		}
		return NewStoreError("PutDeployment", "deployment", deployment.Name, err.Error(), err)
	}
	return nil
}

// GetDeployment fetches a deployment record by name.
func (s *SQLiteStore) GetDeployment(ctx context.Context, name string) (*domain.Deployment, error) {
	var row deploymentRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM deployments WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetDeployment", "deployment", name, "not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetDeployment", "deployment", name, err.Error(), err)
	}
	return rowToDeployment(&row)
}

// DeleteDeployment removes a deployment record by name.
func (s *SQLiteStore) DeleteDeployment(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deployments WHERE name = ?`, name)
	if err != nil {
		return NewStoreError("DeleteDeployment", "deployment", name, err.Error(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewStoreError("DeleteDeployment", "deployment", name, "not found", ErrNotFound)
	}
	return nil
}

// ListDeployments returns deployment records ordered by creation time, newest
// first.
func (s *SQLiteStore) ListDeployments(ctx context.Context, opts ListOptions) ([]domain.Deployment, error) {
	opts = opts.Normalize()

	var rows []deploymentRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM deployments ORDER BY created_at DESC LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListDeployments", "deployment", "", err.Error(), err)
	}

	out := make([]domain.Deployment, 0, len(rows))
	for i := range rows {
		d, err := rowToDeployment(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func deploymentToRow(d *domain.Deployment) (*deploymentRow, error) {
	containers, err := json.Marshal(d.Containers)
	if err != nil {
		return nil, err
	}
	errs, err := json.Marshal(d.Errors)
	if err != nil {
		return nil, err
	}

	return &deploymentRow{
		ID:           d.ID,
		Name:         d.Name,
		StrategyName: d.StrategyName,
		NetworkName:  d.NetworkName,
		Status:       string(d.Status),
		Containers:   string(containers),
		Errors:       string(errs),
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

func rowToDeployment(row *deploymentRow) (*domain.Deployment, error) {
	d := &domain.Deployment{
		ID:           row.ID,
		Name:         row.Name,
		StrategyName: row.StrategyName,
		NetworkName:  row.NetworkName,
		Status:       domain.DeploymentStatus(row.Status),
		Errors:       make(map[string]string),
	}
	if row.Containers != "" {
		if err := json.Unmarshal([]byte(row.Containers), &d.Containers); err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.Name, err.Error(), ErrInvalidData)
		}
	}
	if row.Errors != "" {
		if err := json.Unmarshal([]byte(row.Errors), &d.Errors); err != nil {
			return nil, NewStoreError("rowToDeployment", "deployment", row.Name, err.Error(), ErrInvalidData)
		}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, row.CreatedAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, row.UpdatedAt)
	return d, nil
}
