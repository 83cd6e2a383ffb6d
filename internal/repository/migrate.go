package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
)

// migrationsTable tracks the applied version and the dirty flag.
const migrationsTable = "schema_migrations"

// migrationIndex maps each version found in src to its NNNNNN_name label.
func migrationIndex(src source.Driver) (map[uint]string, error) {
	index := make(map[uint]string)
	v, err := src.First()
	for err == nil {
		r, name, readErr := src.ReadUp(v)
		if readErr != nil {
			return nil, fmt.Errorf("read migration %d: %w", v, readErr)
		}
		_ = r.Close()
		index[v] = fmt.Sprintf("%06d_%s", v, name)
		v, err = src.Next(v)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	return index, nil
}

// between returns the labels of versions in (lo, hi], ascending.
func between(index map[uint]string, lo, hi uint) []string {
	versions := make([]uint, 0, len(index))
	for v := range index {
		if v > lo && v <= hi {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	names := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, index[v])
	}
	return names
}

// migrator opens golang-migrate over the repository pool. The caller must
// call the returned close func.
func (r *Repository) migrator(ctx context.Context, fsys fs.FS) (*migrate.Migrate, map[uint]string, func(), error) {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open migrations: %w", err)
	}
	index, err := migrationIndex(src)
	if err != nil {
		return nil, nil, nil, err
	}

	db := stdlib.OpenDBFromPool(r.pool)
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("open migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = driver.Close()
		return nil, nil, nil, fmt.Errorf("create migrator: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	return m, index, func() {
		close(done)
		_, _ = m.Close()
	}, nil
}

// currentVersion returns 0 when nothing has been applied.
func currentVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty; fix it by hand and force the version", v)
	}
	return v, nil
}

// MigrateUp applies every pending migration and returns the names applied.
func (r *Repository) MigrateUp(ctx context.Context, fsys fs.FS) ([]string, error) {
	m, index, closeFn, err := r.migrator(ctx, fsys)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	before, err := currentVersion(m)
	if err != nil {
		return nil, err
	}

	upErr := m.Up()
	if errors.Is(upErr, migrate.ErrNoChange) {
		upErr = nil
	}

	after, err := currentVersion(m)
	if err != nil {
		if upErr == nil {
			upErr = err
		}
		// A dirty version did not finish applying.
		if after > 0 {
			after--
		}
	}
	applied := between(index, before, after)
	if upErr != nil {
		return applied, fmt.Errorf("migrate up: %w", upErr)
	}
	if err := ctx.Err(); err != nil {
		return applied, err
	}
	return applied, nil
}

// MigrateDown reverts the newest steps applied migrations, newest first.
func (r *Repository) MigrateDown(ctx context.Context, fsys fs.FS, steps int) ([]string, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps must be at least 1, got %d", steps)
	}

	m, index, closeFn, err := r.migrator(ctx, fsys)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	before, err := currentVersion(m)
	if err != nil {
		return nil, err
	}
	if before == 0 {
		return nil, nil
	}

	downErr := m.Steps(-steps)
	var short migrate.ErrShortLimit
	if errors.As(downErr, &short) || errors.Is(downErr, migrate.ErrNoChange) {
		downErr = nil
	}

	after, err := currentVersion(m)
	if err != nil && downErr == nil {
		downErr = err
	}
	reverted := between(index, after, before)
	for i, j := 0, len(reverted)-1; i < j; i, j = i+1, j-1 {
		reverted[i], reverted[j] = reverted[j], reverted[i]
	}
	if downErr != nil {
		return reverted, fmt.Errorf("migrate down: %w", downErr)
	}
	return reverted, nil
}
