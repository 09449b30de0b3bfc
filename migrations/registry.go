package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	social "github.com/goliatone/go-social"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultSourceLabel = "go-social"
	embeddedRoot       = "data/sql/migrations"
)

// dialectDirs lists where each dialect lives relative to the migration
// root. Postgres files sit at the root; sqlite variants in a subdirectory.
var dialectDirs = []struct {
	dialect string
	dir     string
}{
	{DialectPostgres, "."},
	{DialectSQLite, "sqlite"},
}

var dialectAliases = map[string]string{
	"sqlite3":    DialectSQLite,
	"postgresql": DialectPostgres,
	"pg":         DialectPostgres,
}

// FilesystemSpec is one dialect's migration directory.
type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Filesystems       []FilesystemSpec
}

// RegisterFunc receives each selected dialect filesystem, typically to hand
// it to persistence.Client.RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeAll(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

// WithFilesystems replaces the embedded migrations.
func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		kept := slices.DeleteFunc(slices.Clone(filesystems), func(spec FilesystemSpec) bool {
			return spec.FS == nil || normalizeDialect(spec.Dialect) == ""
		})
		for i := range kept {
			kept[i].Dialect = normalizeDialect(kept[i].Dialect)
		}
		if len(kept) > 0 {
			r.Filesystems = kept
		}
	}
}

// Filesystems splits a migration tree into its postgres and sqlite parts.
// The tree may be rooted at data/sql/migrations or hold the files directly.
// Without a source the embedded migrations are used.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	source := social.GetMigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		source = sources[0]
	}
	root, rootPath, err := locateRoot(source)
	if err != nil {
		return nil, err
	}

	out := make([]FilesystemSpec, 0, len(dialectDirs))
	for _, entry := range dialectDirs {
		fsys := root
		if entry.dir != "." {
			if fsys, err = fs.Sub(root, entry.dir); err != nil {
				return nil, fmt.Errorf("migrations: open %s directory: %w", entry.dialect, err)
			}
		}
		spec := FilesystemSpec{Dialect: entry.dialect, Path: cleanJoin(rootPath, entry.dir), FS: fsys}
		if err := requireUpMigrations(spec); err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}

// ForDialect returns the filesystem for one dialect. "sqlite3",
// "postgresql" and "pg" are accepted.
func ForDialect(dialect string, sources ...fs.FS) (fs.FS, error) {
	want := normalizeDialect(dialect)
	filesystems, err := Filesystems(sources...)
	if err != nil {
		return nil, err
	}
	index := slices.IndexFunc(filesystems, func(spec FilesystemSpec) bool { return spec.Dialect == want })
	if index < 0 {
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	return filesystems[index].FS, nil
}

// Register hands every filesystem whose dialect is a validation target to
// registerFn.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       defaultSourceLabel,
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if err := reg.validate(registerFn); err != nil {
		return reg, err
	}

	for _, spec := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s from %s: %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func (r Registration) validate(registerFn RegisterFunc) error {
	switch {
	case registerFn == nil:
		return errors.New("migrations: register function is required")
	case strings.TrimSpace(r.SourceLabel) == "":
		return errors.New("migrations: source label is required")
	case len(r.ValidationTargets) == 0:
		return errors.New("migrations: validation targets are required")
	case len(r.Filesystems) == 0:
		return errors.New("migrations: filesystems are required")
	}
	return nil
}

func locateRoot(source fs.FS) (fs.FS, string, error) {
	info, statErr := fs.Stat(source, embeddedRoot)
	if statErr == nil && info.IsDir() {
		sub, err := fs.Sub(source, embeddedRoot)
		if err != nil {
			return nil, "", fmt.Errorf("migrations: open %s: %w", embeddedRoot, err)
		}
		return sub, embeddedRoot, nil
	}
	if matches, _ := fs.Glob(source, "*.sql"); len(matches) > 0 {
		return source, ".", nil
	}
	if statErr == nil {
		statErr = fs.ErrNotExist
	}
	return nil, "", fmt.Errorf("migrations: %s not found: %w", embeddedRoot, statErr)
}

func requireUpMigrations(spec FilesystemSpec) error {
	matches, err := fs.Glob(spec.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: list %s migrations in %s: %w", spec.Dialect, spec.Path, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("migrations: no %s *.up.sql files in %q", spec.Dialect, spec.Path)
	}
	return nil
}

func normalizeDialect(dialect string) string {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	if alias, ok := dialectAliases[dialect]; ok {
		return alias
	}
	return dialect
}

func normalizeAll(dialects []string) []string {
	out := make([]string, 0, len(dialects))
	for _, dialect := range dialects {
		if dialect = normalizeDialect(dialect); dialect != "" && !slices.Contains(out, dialect) {
			out = append(out, dialect)
		}
	}
	return out
}

func cleanJoin(base, dir string) string {
	return path.Clean(path.Join(base, dir))
}
