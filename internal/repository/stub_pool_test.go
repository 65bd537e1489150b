package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// recPool records every statement and serves canned rows.
type recPool struct {
	execSQL   []string
	execArgs  [][]any
	execErr   error
	querySQL  []string
	queryArgs [][]any
	rowsData  [][]any
	rowData   []any
	rowErr    error
	batch     *pgx.Batch
	batchTags []pgconn.CommandTag
}

func (p *recPool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = append(p.execSQL, sql)
	p.execArgs = append(p.execArgs, args)
	return pgconn.CommandTag{}, p.execErr
}

func (p *recPool) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	p.batch = b
	return &recBatch{tags: p.batchTags}
}

func (p *recPool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.querySQL = append(p.querySQL, sql)
	p.queryArgs = append(p.queryArgs, args)
	return &recRows{data: p.rowsData}, nil
}

func (p *recPool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.querySQL = append(p.querySQL, sql)
	p.queryArgs = append(p.queryArgs, args)
	if p.rowErr != nil {
		return &recRow{err: p.rowErr}
	}
	if p.rowData == nil {
		return &recRow{err: pgx.ErrNoRows}
	}
	return &recRow{values: p.rowData}
}

type recBatch struct {
	tags []pgconn.CommandTag
	idx  int
}

func (b *recBatch) Exec() (pgconn.CommandTag, error) {
	if b.idx < len(b.tags) {
		tag := b.tags[b.idx]
		b.idx++
		return tag, nil
	}
	b.idx++
	return pgconn.NewCommandTag("UPDATE 1"), nil
}
func (b *recBatch) Query() (pgx.Rows, error) { return &recRows{}, nil }
func (b *recBatch) QueryRow() pgx.Row         { return &recRow{err: pgx.ErrNoRows} }
func (b *recBatch) Close() error              { return nil }

type recRows struct {
	data [][]any
	idx  int
}

func (r *recRows) Close()                                       {}
func (r *recRows) Err() error                                   { return nil }
func (r *recRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *recRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *recRows) Values() ([]any, error)                       { return nil, nil }
func (r *recRows) RawValues() [][]byte                          { return nil }
func (r *recRows) Conn() *pgx.Conn                              { return nil }

func (r *recRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *recRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return assign(r.data[r.idx-1], dest)
}

type recRow struct {
	values []any
	err    error
}

func (r *recRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("expected %d columns, scanning %d", len(values), len(dest))
	}
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = values[i].(string)
		case *int:
			*ptr = values[i].(int)
		case *time.Time:
			*ptr = values[i].(time.Time)
		case *[]byte:
			*ptr = values[i].([]byte)
		case **int64:
			if values[i] == nil {
				*ptr = nil
			} else {
				v := values[i].(int64)
				*ptr = &v
			}
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}
