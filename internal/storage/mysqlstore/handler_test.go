package mysqlstore

import (
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
	"testing"
)

// countingDriver tracks prepared-statement lifecycle so leaks show up as a
// prepared/closed mismatch.
type countingDriver struct {
	mu       sync.Mutex
	prepared int
	closed   int
}

func (d *countingDriver) Open(string) (driver.Conn, error) {
	return &countingConn{d: d}, nil
}

type countingConn struct {
	d *countingDriver
}

func (c *countingConn) Prepare(string) (driver.Stmt, error) {
	c.d.mu.Lock()
	c.d.prepared++
	c.d.mu.Unlock()

	return &countingStmt{d: c.d}, nil
}

func (c *countingConn) Close() error { return nil }

func (c *countingConn) Begin() (driver.Tx, error) { return nil, driver.ErrSkip }

type countingStmt struct {
	d *countingDriver
}

func (s *countingStmt) Close() error {
	s.d.mu.Lock()
	s.d.closed++
	s.d.mu.Unlock()

	return nil
}

func (s *countingStmt) NumInput() int { return -1 }

func (s *countingStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

func (s *countingStmt) Query([]driver.Value) (driver.Rows, error) {
	return &singleRow{}, nil
}

type singleRow struct {
	done bool
}

func (r *singleRow) Columns() []string { return []string{"balance"} }

func (r *singleRow) Close() error { return nil }

func (r *singleRow) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = float64(10)

	return nil
}

func TestHandlerClosesStatements(t *testing.T) {
	d := &countingDriver{}
	sql.Register("tradebull-counting", d)

	db, err := sql.Open("tradebull-counting", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.SetMaxOpenConns(1)

	handler := NewHandler(db)

	for i := 0; i < 3; i++ {
		if _, err = handler.PrepareAndExecute("UPDATE balances SET balance = balance + ? WHERE user_id = ?", 1.0, "u1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		row, err := handler.PrepareAndQueryRow("SELECT balance FROM balances WHERE user_id = ?", "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var bal float64
		if err = row.Scan(&bal); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if bal != 10.0 {
			t.Errorf("unexpected balance, want: 10, got: %f", bal)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.prepared == 0 {
		t.Fatal("no statements were prepared")
	}

	if d.closed != d.prepared {
		t.Errorf("statements leaked, prepared: %d, closed: %d", d.prepared, d.closed)
	}
}
