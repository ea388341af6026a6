// Package datarecording stores flat Go structs as rows of SQLite tables.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// ErrInvalidEntry is returned when an entry has a field that cannot be stored
// in a single column.
var ErrInvalidEntry = errors.New("entry is invalid")

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables created so far.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

// New creates a DataRecorder that writes into path + ".sqlite3". An empty
// path picks a unique name.
func New(path string) (DataRecorder, error) {
	w := NewSQLiteWriter(path)
	if err := w.Init(); err != nil {
		return nil, err
	}

	atexit.Register(func() { w.Flush() })

	return w, nil
}

// NewWithDB creates a new DataRecorder with a given database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &SQLiteWriter{
		DB:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

const defaultBatchSize = 100000

type table struct {
	structType reflect.Type
	entries    []any
}

// SQLiteWriter is the writer that writes data into SQLite database. It is
// safe for concurrent use.
type SQLiteWriter struct {
	*sql.DB

	mu         sync.Mutex
	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

// NewSQLiteWriter creates a writer for dbName. Init must be called before it
// is used.
func NewSQLiteWriter(dbName string) *SQLiteWriter {
	return &SQLiteWriter{
		dbName:    dbName,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}
}

// Init creates the database file and connects to it. It refuses to overwrite
// an existing file.
func (t *SQLiteWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "linecomp_recording_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		return fmt.Errorf("file %s already exists", filename)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return err
	}

	t.DB = db

	return nil
}

// Filename returns the path of the database file.
func (t *SQLiteWriter) Filename() string {
	return t.dbName + ".sqlite3"
}

func isAllowedType(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	types := reflect.TypeOf(entry)
	if types == nil || types.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a struct", ErrInvalidEntry, entry)
	}

	for i := 0; i < types.NumField(); i++ {
		field := types.Field(i)

		if !field.IsExported() || !isAllowedType(field.Type.Kind()) {
			return fmt.Errorf("%w: field %s", ErrInvalidEntry, field.Name)
		}
	}

	return nil
}

// CreateTable creates a table named tableName with one column per field of
// sampleEntry.
func (t *SQLiteWriter) CreateTable(tableName string, sampleEntry any) error {
	if err := checkStructFields(sampleEntry); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.tables[tableName]; exists {
		return fmt.Errorf("table %s already exists", tableName)
	}

	n := structs.Names(sampleEntry)
	fields := strings.Join(n, ", \n\t")

	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`
	if _, err := t.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to execute %q: %w", createTableSQL, err)
	}

	t.tables[tableName] = &table{
		structType: reflect.TypeOf(sampleEntry),
		entries:    []any{},
	}

	return nil
}

// InsertData buffers entry and flushes once the batch is full.
func (t *SQLiteWriter) InsertData(tableName string, entry any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	table, exists := t.tables[tableName]
	if !exists {
		return fmt.Errorf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != table.structType {
		return fmt.Errorf("%w: %T does not match table %s",
			ErrInvalidEntry, entry, tableName)
	}

	table.entries = append(table.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		return t.flush()
	}

	return nil
}

// ListTables returns the names of the tables created by this writer.
func (t *SQLiteWriter) ListTables() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	tables := make([]string, 0, len(t.tables))
	for table := range t.tables {
		tables = append(tables, table)
	}

	return tables
}

// Flush writes all buffered entries in one transaction.
func (t *SQLiteWriter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.flush()
}

func (t *SQLiteWriter) flush() error {
	if t.entryCount == 0 || t.DB == nil {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return err
	}

	for tableName, table := range t.tables {
		if len(table.entries) == 0 {
			continue
		}

		if err := insertEntries(tx, tableName, table.entries); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// Buffers survive a failed flush so that it can be retried.
	for _, table := range t.tables {
		table.entries = nil
	}

	t.entryCount = 0

	return nil
}

func insertEntries(tx *sql.Tx, tableName string, entries []any) error {
	stmt, err := tx.Prepare(insertStatement(tableName, entries[0]))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("insert into %s: %w", tableName, err)
		}
	}

	return nil
}

func insertStatement(tableName string, entry any) string {
	n := structs.Names(entry)
	for i := 0; i < len(n); i++ {
		n[i] = "?"
	}

	entryToFill := "(" + strings.Join(n, ", ") + ")"

	return "INSERT INTO " + tableName + " VALUES " + entryToFill
}

// Close flushes the buffered entries and closes the database.
func (t *SQLiteWriter) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.DB == nil {
		return nil
	}

	err := t.DB.Close()
	t.DB = nil

	return err
}
