// Package testutil provides a stub database holding the postgres store's namespaces
// table, for tests that cannot reach a server.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Uint64

// Row is one stored namespace.
type Row struct {
	Name     string
	Position int64
	Payload  []byte
}

// StubConn recognises the statements the store issues by their leading keyword.
// CREATE is recorded only. TRUNCATE clears Rows. INSERT appends a row and rejects a
// repeated name like the table's primary key. SELECT returns name and payload ordered
// by position.
type StubConn struct {
	Execs      []string
	Rows       []Row
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailInsert bool
	FailQuery  bool
	RowsErr    error
	Rollbacks  int
}

// NewStubDB registers a uniquely named driver and opens a sql.DB backed by it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{}
	name := fmt.Sprintf("elwinator-stubpg-%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; the store only uses direct execution.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping refused")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin refused")
	}
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	switch keyword(query) {
	case "TRUNCATE":
		c.Rows = nil
	case "INSERT":
		return c.insert(args)
	}
	return driver.RowsAffected(0), nil
}

func (c *StubConn) insert(args []driver.NamedValue) (driver.Result, error) {
	if c.FailInsert {
		return nil, errors.New("insert refused")
	}
	if len(args) != 3 {
		return nil, fmt.Errorf("insert expects name, position, payload; got %d args", len(args))
	}
	name, _ := args[0].Value.(string)
	position, _ := args[1].Value.(int64)
	payload, _ := args[2].Value.([]byte)
	for _, r := range c.Rows {
		if r.Name == name {
			return nil, fmt.Errorf("duplicate key value violates unique constraint: name=%s", name)
		}
	}
	c.Rows = append(c.Rows, Row{Name: name, Position: position, Payload: payload})
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if keyword(query) != "SELECT" {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	if c.FailQuery {
		return nil, errors.New("query refused")
	}
	rows := append([]Row(nil), c.Rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Position < rows[j].Position })
	return &stubRows{rows: rows, err: c.RowsErr}, nil
}

func keyword(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("commit refused")
	}
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	rows []Row
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return []string{"name", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	dest[0], dest[1] = r.rows[r.idx].Name, r.rows[r.idx].Payload
	r.idx++
	return nil
}
