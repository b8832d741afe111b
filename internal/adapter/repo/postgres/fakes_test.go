package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// assign copies vals into Scan destinations; a nil value zeroes the destination.
func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if vals[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		v := reflect.ValueOf(vals[i])
		if target.Kind() == reflect.Ptr && v.Kind() != reflect.Ptr {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(v)
			v = p
		}
		target.Set(v)
	}
	return nil
}

type rowStub struct {
	vals []any
	err  error
}

func (r rowStub) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

type rowsStub struct {
	pgx.Rows
	data [][]any
	i    int
	err  error
}

func (r *rowsStub) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *rowsStub) Scan(dest ...any) error { return assign(dest, r.data[r.i-1]) }
func (r *rowsStub) Err() error             { return r.err }
func (r *rowsStub) Close()                 {}

type execCall struct {
	sql  string
	args []any
}

// poolStub routes calls by SQL prefix and records every Exec.
type poolStub struct {
	execs    []execCall
	execTag  func(sql string) (pgconn.CommandTag, error)
	rowFor   func(sql string, args []any) pgx.Row
	rowsFor  func(sql string, args []any) (pgx.Rows, error)
	beginErr error
	tx       *txStub
}

func (p *poolStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execs = append(p.execs, execCall{sql: sql, args: args})
	if p.execTag != nil {
		return p.execTag(sql)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (p *poolStub) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if p.rowFor == nil {
		return rowStub{err: errors.New("no row configured")}
	}
	return p.rowFor(sql, args)
}

func (p *poolStub) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.rowsFor == nil {
		return &rowsStub{}, nil
	}
	return p.rowsFor(sql, args)
}

func (p *poolStub) BeginTx(_ context.Context, _ pgx.TxOptions) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	if p.tx == nil {
		p.tx = &txStub{}
	}
	return p.tx, nil
}

type txStub struct {
	pgx.Tx
	execs      []execCall
	failOn     string
	updateRows int64
	committed  bool
	rolledBack bool
}

func (t *txStub) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	if t.failOn != "" && strings.Contains(sql, t.failOn) {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	if strings.HasPrefix(sql, "UPDATE") {
		return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", t.updateRows)), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *txStub) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *txStub) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *txStub) count(prefix string) int {
	n := 0
	for _, e := range t.execs {
		if strings.HasPrefix(e.sql, prefix) {
			n++
		}
	}
	return n
}
