package store

import (
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// noRows is a result set with nothing in it.
type noRows struct{ closed bool }

func (r *noRows) Close()                                       { r.closed = true }
func (r *noRows) Err() error                                   { return nil }
func (r *noRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT 0") }
func (r *noRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *noRows) Next() bool                                   { return false }
func (r *noRows) Scan(...any) error                            { return nil }
func (r *noRows) Values() ([]any, error)                       { return nil, nil }
func (r *noRows) RawValues() [][]byte                          { return nil }
func (r *noRows) Conn() *pgx.Conn                              { return nil }

func TestCollectEntriesEmptyIsNotNull(t *testing.T) {
	rows := &noRows{}
	entries, err := collectEntries(rows)
	if err != nil {
		t.Fatal(err)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("empty listing encodes as %s, want []", data)
	}
}
