package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
)

// QueryParams narrows and orders the rows returned by DataReader.Query.
type QueryParams struct {
	// Where is a condition without the WHERE keyword, such as
	// "Workload = ? AND Pattern = ?".
	Where string

	// Args fills the placeholders of Where.
	Args []any

	// Limit caps the number of returned rows. Zero returns every row.
	Limit int

	// Offset skips rows. It only applies together with Limit.
	Offset int

	// OrderBy is a sort order without the ORDER BY keywords, such as
	// "LineIndex DESC".
	OrderBy string
}

// DataReader reads rows back into the structs they were recorded from.
type DataReader interface {
	// MapTable declares that the rows of tableName decode into the type of
	// sampleEntry. A table must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables in name order.
	ListTables() []string

	// Query returns pointers to the decoded rows that match params, together
	// with the number of rows that match params.Where regardless of Limit.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	// Close closes the database.
	Close() error
}

type tableMapping struct {
	structType reflect.Type
	fields     map[string]int
}

type sqliteReader struct {
	*sql.DB

	mappings map[string]tableMapping
}

// NewReader opens an existing recording for reading. It fails if the file
// does not exist rather than creating an empty database.
func NewReader(dbFilename string) (DataReader, error) {
	if _, err := os.Stat(dbFilename); err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbFilename+"?mode=ro")
	if err != nil {
		return nil, err
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB creates a DataReader over an open database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqliteReader{
		DB:       db,
		mappings: make(map[string]tableMapping),
	}
}

func (r *sqliteReader) MapTable(tableName string, sampleEntry any) {
	t := reflect.TypeOf(sampleEntry)

	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		fields[t.Field(i).Name] = i
	}

	r.mappings[tableName] = tableMapping{structType: t, fields: fields}
}

func (r *sqliteReader) ListTables() []string {
	tables := make([]string, 0, len(r.mappings))
	for table := range r.mappings {
		tables = append(tables, table)
	}

	sort.Strings(tables)

	return tables
}

func (r *sqliteReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	mapping, ok := r.mappings[tableName]
	if !ok {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	filter := ""
	if params.Where != "" {
		filter = " WHERE " + params.Where
	}

	var totalCount int

	err := r.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+filter, params.Args...).
		Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", tableName, err)
	}

	query := strings.Builder{}
	query.WriteString("SELECT * FROM " + tableName + filter)

	if params.OrderBy != "" {
		query.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&query, " LIMIT %d OFFSET %d", params.Limit, params.Offset)
	}

	rows, err := r.QueryContext(ctx, query.String(), params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", tableName, err)
	}
	defer rows.Close()

	results, err := mapping.decode(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", tableName, err)
	}

	return results, totalCount, nil
}

// decode scans every row into a new struct. Columns without a matching field
// are discarded.
func (m tableMapping) decode(rows *sql.Rows) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []any{}
	targets := make([]any, len(columns))

	for rows.Next() {
		entry := reflect.New(m.structType)

		for i, column := range columns {
			if field, ok := m.fields[column]; ok {
				targets[i] = entry.Elem().Field(field).Addr().Interface()
			} else {
				targets[i] = new(any)
			}
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		results = append(results, entry.Interface())
	}

	return results, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.DB.Close()
}
