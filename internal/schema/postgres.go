package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresLoader reads table metadata from information_schema. It works
// against any database reachable through the pgx stdlib driver.
type PostgresLoader struct {
	db      *sql.DB
	schemas []string
}

func NewPostgresLoader(db *sql.DB, includeSchemas []string) *PostgresLoader {
	if len(includeSchemas) == 0 {
		includeSchemas = []string{"public"}
	}
	return &PostgresLoader{db: db, schemas: includeSchemas}
}

func (l *PostgresLoader) LoadAll(ctx context.Context) (map[string]TableSchema, error) {
	placeholders := make([]string, 0, len(l.schemas))
	args := make([]any, 0, len(l.schemas))
	for idx, name := range l.schemas {
		placeholders = append(placeholders, fmt.Sprintf("$%d", idx+1))
		args = append(args, name)
	}
	inClause := strings.Join(placeholders, ", ")

	query := fmt.Sprintf(`
SELECT c.table_name, c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema IN (%s) AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name ASC, c.ordinal_position ASC`, inClause)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := map[string]TableSchema{}
	for rows.Next() {
		var tableName, columnName, dataType, isNullable string
		if err := rows.Scan(&tableName, &columnName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		table := tables[tableName]
		table.TableName = tableName
		table.Columns = append(table.Columns, ColumnDescriptor{
			Name:         columnName,
			DeclaredType: dataType,
			Nullable:     strings.EqualFold(isNullable, "YES"),
		})
		tables[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	if err := l.markPrimaryKeys(ctx, inClause, args, tables); err != nil {
		return nil, err
	}
	return tables, nil
}

func (l *PostgresLoader) markPrimaryKeys(ctx context.Context, inClause string, args []any, tables map[string]TableSchema) error {
	query := fmt.Sprintf(`
SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
WHERE tc.table_schema IN (%s) AND tc.constraint_type = 'PRIMARY KEY'`, inClause)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return fmt.Errorf("scan primary key row: %w", err)
		}
		table, ok := tables[tableName]
		if !ok {
			continue
		}
		for idx := range table.Columns {
			if table.Columns[idx].Name == columnName {
				table.Columns[idx].PrimaryKey = true
			}
		}
		tables[tableName] = table
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate primary key rows: %w", err)
	}
	return nil
}
