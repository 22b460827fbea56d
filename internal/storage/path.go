package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildExportPath returns the archive key for one exported report:
// exports/{table}/{timestamp}.{format}. The timestamp is UTC and
// second-granular, which keeps keys sortable and collision-free for
// interactive use.
func BuildExportPath(tableName, format string, exportedAt time.Time) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(format, "format"); err != nil {
		return "", err
	}
	ts := exportedAt.UTC()
	return path.Join(
		"exports",
		tableName,
		fmt.Sprintf("%04d%02d%02dT%02d%02d%02dZ.%s", ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), format),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
