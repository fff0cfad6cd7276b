package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	_ "modernc.org/sqlite"
)

// scoreColumn ties a form key to its table column and report label. The
// upload header for a score is Key + "_SCORE".
type scoreColumn struct {
	Key    string
	Column string
	Label  string
}

var scoreColumns = []scoreColumn{
	{Key: "HTML", Column: "html_score", Label: "HTML"},
	{Key: "CSS", Column: "css_score", Label: "CSS"},
	{Key: "JAVASCRIPT", Column: "javascript_score", Label: "JavaScript"},
	{Key: "PYTHON", Column: "python_score", Label: "Python"},
	{Key: "JAVA", Column: "java_score", Label: "Java"},
	{Key: "C", Column: "c_score", Label: "C"},
	{Key: "CPP", Column: "cpp_score", Label: "C++"},
	{Key: "SQL_TESTING", Column: "sql_testing_score", Label: "SQL Testing"},
	{Key: "TOOLS_COURSE", Column: "tools_course_score", Label: "Testing Tools"},
}

// Scores holds one value per scoreColumns entry, in the same order.
type Scores [9]int

// EmployeeRecord is a stored employee with its role and scores.
type EmployeeRecord struct {
	ID       int64
	Name     string
	RoleName sql.NullString
	Scores   Scores
}

// NewEmployee is an employee about to be inserted.
type NewEmployee struct {
	Name     string
	Password string
	Scores   Scores
}

const defaultRoleID = 1

const schema = `
CREATE TABLE IF NOT EXISTS tsr_roles (
	role_id   INTEGER PRIMARY KEY,
	role_name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS employees (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	name               TEXT,
	html_score         INTEGER NOT NULL DEFAULT 0,
	css_score          INTEGER NOT NULL DEFAULT 0,
	javascript_score   INTEGER NOT NULL DEFAULT 0,
	python_score       INTEGER NOT NULL DEFAULT 0,
	java_score         INTEGER NOT NULL DEFAULT 0,
	c_score            INTEGER NOT NULL DEFAULT 0,
	cpp_score          INTEGER NOT NULL DEFAULT 0,
	sql_testing_score  INTEGER NOT NULL DEFAULT 0,
	tools_course_score INTEGER NOT NULL DEFAULT 0,
	tsr_role_id        INTEGER REFERENCES tsr_roles(role_id)
);
CREATE TABLE IF NOT EXISTS credentials (
	emp_id   INTEGER NOT NULL,
	username TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO tsr_roles (role_id, role_name) VALUES (1, 'Trainee');
INSERT OR IGNORE INTO credentials (emp_id, username, password, is_admin) VALUES (0, 'admin', 'admin', 1);
`

// Store persists the sandbox roster in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the store at path. An empty path keeps everything
// in memory for the life of the process.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if strings.TrimSpace(path) != "" {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	// One connection keeps an in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "ping sqlite db")
	}
	if _, err := sqlDB.ExecContext(ctx, schema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func scoreColumnList() string {
	cols := make([]string, len(scoreColumns))
	for i, c := range scoreColumns {
		cols[i] = c.Column
	}
	return strings.Join(cols, ", ")
}

// ListEmployees returns every employee ordered by id.
func (s *Store) ListEmployees(ctx context.Context) ([]EmployeeRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT e.id, e.name, tr.role_name
		FROM employees e LEFT JOIN tsr_roles tr ON e.tsr_role_id = tr.role_id
		ORDER BY e.id`)
	if err != nil {
		return nil, errors.Wrap(err, "list employees")
	}
	defer rows.Close()
	var out []EmployeeRecord
	for rows.Next() {
		var (
			rec  EmployeeRecord
			name sql.NullString
		)
		if err := rows.Scan(&rec.ID, &name, &rec.RoleName); err != nil {
			return nil, errors.Wrap(err, "scan employee")
		}
		rec.Name = name.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate employees")
	}
	return out, nil
}

// Employee loads one employee with its scores.
func (s *Store) Employee(ctx context.Context, id int64) (EmployeeRecord, bool, error) {
	query := fmt.Sprintf(`
		SELECT e.id, e.name, tr.role_name, %s
		FROM employees e LEFT JOIN tsr_roles tr ON e.tsr_role_id = tr.role_id
		WHERE e.id = ?`, scoreColumnList())
	var (
		rec  EmployeeRecord
		name sql.NullString
	)
	dest := []any{&rec.ID, &name, &rec.RoleName}
	for i := range rec.Scores {
		dest = append(dest, &rec.Scores[i])
	}
	err := s.sqlDB.QueryRowContext(ctx, query, id).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return EmployeeRecord{}, false, nil
	}
	if err != nil {
		return EmployeeRecord{}, false, errors.Wrap(err, "load employee")
	}
	rec.Name = name.String
	return rec, true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEmployee(ctx context.Context, db execer, emp NewEmployee) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(scoreColumns)+2), ", ")
	query := fmt.Sprintf("INSERT INTO employees (name, %s, tsr_role_id) VALUES (%s)", scoreColumnList(), placeholders)
	args := []any{emp.Name}
	for _, v := range emp.Scores {
		args = append(args, v)
	}
	args = append(args, defaultRoleID)
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "insert employee")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "employee id")
	}
	username := Username(emp.Name, id)
	password := emp.Password
	if password == "" {
		password = fmt.Sprintf("pass%d", id)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO credentials (emp_id, username, password, is_admin) VALUES (?, ?, ?, 0)",
		id, username, password); err != nil {
		return 0, errors.Wrap(err, "insert credentials")
	}
	return id, nil
}

// Username derives the login name: the lowercased name without spaces,
// followed by the employee id.
func Username(name string, id int64) string {
	return fmt.Sprintf("%s%d", strings.ReplaceAll(strings.ToLower(name), " ", ""), id)
}

// AddEmployee inserts one employee and its credentials atomically.
func (s *Store) AddEmployee(ctx context.Context, emp NewEmployee) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = insertEmployee(ctx, tx, emp)
		return err
	})
	return id, err
}

// AddEmployees inserts a batch; either every row lands or none does.
func (s *Store) AddEmployees(ctx context.Context, emps []NewEmployee) (int, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, emp := range emps {
			if _, err := insertEmployee(ctx, tx, emp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(emps), nil
}

// DeleteEmployee removes an employee and its credentials. It reports whether
// an employee row was removed.
func (s *Store) DeleteEmployee(ctx context.Context, id int64) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM credentials WHERE emp_id = ?", id); err != nil {
			return errors.Wrap(err, "delete credentials")
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
		if err != nil {
			return errors.Wrap(err, "delete employee")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "rows affected")
		}
		removed = n > 0
		return nil
	})
	return removed, err
}

// Authenticate checks a username/password pair.
func (s *Store) Authenticate(ctx context.Context, username, password string) (empID int64, admin bool, ok bool, err error) {
	var (
		stored  string
		isAdmin int
	)
	err = s.sqlDB.QueryRowContext(ctx,
		"SELECT emp_id, password, is_admin FROM credentials WHERE username = ? LIMIT 1", username).
		Scan(&empID, &stored, &isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, errors.Wrap(err, "load credentials")
	}
	if stored != password {
		return 0, false, false, nil
	}
	return empID, isAdmin != 0, true, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}
