// Package schema holds the in-memory index of source tables and columns.
// The index is loaded wholesale from the source database and replaced
// atomically on refresh; readers never observe a partially updated view.
package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrUnknownTable = errors.New("schema: unknown table")

type ColumnDescriptor struct {
	Name         string
	DeclaredType string
	Nullable     bool
	PrimaryKey   bool
}

type TableSchema struct {
	TableName string
	Columns   []ColumnDescriptor
}

func (t TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	return names
}

// HasColumn reports whether the table has a column with the given name,
// matched case-insensitively, and returns the schema's spelling.
func (t TableSchema) HasColumn(name string) (string, bool) {
	lowered := strings.ToLower(name)
	for _, column := range t.Columns {
		if strings.ToLower(column.Name) == lowered {
			return column.Name, true
		}
	}
	return "", false
}

type TableInfo struct {
	TableName   string
	ColumnCount int
}

// Loader produces the full table set in one pass.
type Loader interface {
	LoadAll(ctx context.Context) (map[string]TableSchema, error)
}

type Index struct {
	mu       sync.RWMutex
	tables   map[string]TableSchema
	loadedAt time.Time
}

func NewIndex() *Index {
	return &Index{tables: map[string]TableSchema{}}
}

func (i *Index) Refresh(ctx context.Context, loader Loader) error {
	if loader == nil {
		return fmt.Errorf("schema loader is required")
	}
	tables, err := loader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	i.Replace(tables)
	return nil
}

// Replace swaps the entire table set. Table names are keyed
// case-insensitively; the original spelling is preserved in the value.
func (i *Index) Replace(tables map[string]TableSchema) {
	keyed := make(map[string]TableSchema, len(tables))
	for name, table := range tables {
		if table.TableName == "" {
			table.TableName = name
		}
		keyed[strings.ToLower(name)] = table
	}
	i.mu.Lock()
	i.tables = keyed
	i.loadedAt = time.Now().UTC()
	i.mu.Unlock()
}

func (i *Index) ColumnsOf(tableName string) (TableSchema, error) {
	i.mu.RLock()
	table, ok := i.tables[strings.ToLower(strings.TrimSpace(tableName))]
	i.mu.RUnlock()
	if !ok {
		return TableSchema{}, fmt.Errorf("%w: %q", ErrUnknownTable, tableName)
	}
	return table, nil
}

func (i *Index) ListTables() []TableInfo {
	i.mu.RLock()
	infos := make([]TableInfo, 0, len(i.tables))
	for _, table := range i.tables {
		infos = append(infos, TableInfo{
			TableName:   table.TableName,
			ColumnCount: len(table.Columns),
		})
	}
	i.mu.RUnlock()

	sort.Slice(infos, func(a, b int) bool { return infos[a].TableName < infos[b].TableName })
	return infos
}

func (i *Index) LoadedAt() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.loadedAt
}
