package database

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"phototagger/logging"
	"phototagger/query"
	"phototagger/types"
)

// Session is a read-only view of the catalogue scoped to one library root
type Session struct {
	db      *sql.DB
	root    string
	owned   bool
	timeout time.Duration
}

// SessionOptions tunes an index session
type SessionOptions struct {
	// QueryTimeout bounds every query; zero means no bound beyond the caller's context
	QueryTimeout time.Duration
}

// OpenSession opens the catalogue at dbPath scoped to the library root
func OpenSession(dbPath, root string, opts SessionOptions) (*Session, error) {
	db, err := OpenDatabase(dbPath)
	if err != nil {
		return nil, types.NewError(types.CategoryArgument, "open index", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, types.NewError(types.CategoryArgument, "open index", dbPath, err)
	}
	s := NewSession(db, root, opts)
	s.owned = true
	return s, nil
}

// NewSession wraps an already open connection. Close does not close db.
func NewSession(db *sql.DB, root string, opts SessionOptions) *Session {
	return &Session{db: db, root: ScopeRoot(root), timeout: opts.QueryTimeout}
}

// Execute runs one predicate inside the session scope and returns the
// matching paths
func (s *Session) Execute(ctx context.Context, p query.Predicate) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stmt := p.Render(ImagesTable, s.scopeClause("path"))
	logging.DebugLog("Index query [%s]: %s", p.Tier(), stmt)

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, types.NewError(types.CategoryQuery, "query "+p.Tier(), s.root, err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var stored string
		if err := rows.Scan(&stored); err != nil {
			return nil, types.NewError(types.CategoryQuery, "scan "+p.Tier(), s.root, err)
		}
		paths = append(paths, filepath.FromSlash(stored))
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewError(types.CategoryQuery, "query "+p.Tier(), s.root, err)
	}
	return paths, nil
}

// AllKeywords returns every distinct keyword under the session scope, sorted
// case-insensitively
func (s *Session) AllKeywords(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stmt := fmt.Sprintf(`SELECT DISTINCT k.keyword FROM image_keywords k
		JOIN %s i ON i.id = k.image_id
		WHERE %s
		ORDER BY k.keyword COLLATE NOCASE, k.keyword`, ImagesTable, s.scopeClause("i.path"))

	rows, err := s.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, types.NewError(types.CategoryQuery, "list keywords", s.root, err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, types.NewError(types.CategoryQuery, "list keywords", s.root, err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewError(types.CategoryQuery, "list keywords", s.root, err)
	}
	return keywords, nil
}

// Close releases the connection if the session opened it
func (s *Session) Close() error {
	if s.owned && s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session) scopeClause(column string) string {
	return fmt.Sprintf("substr(%s, 1, %d) = %s", column, scopeLen(s.root), query.Quote(s.root))
}

// ScopeRoot turns a library root into the slash-separated prefix stored
// paths are compared against. It always ends in a slash. UNC roots such as
// //host/share keep their leading double slash.
func ScopeRoot(root string) string {
	scope := StoredPath(root)
	if !strings.HasSuffix(scope, "/") {
		scope += "/"
	}
	return scope
}

// StoredPath converts a filesystem path into the form kept in the catalogue
func StoredPath(p string) string {
	slashed := filepath.ToSlash(p)
	if strings.HasPrefix(slashed, "//") {
		return "/" + path.Clean(slashed)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return filepath.ToSlash(abs)
	}
	return path.Clean(slashed)
}

// scopeLen is the prefix length in characters, as substr counts them
func scopeLen(scope string) int {
	return utf8.RuneCountInString(scope)
}
