package report

import (
	"errors"
	"reflect"
	"testing"

	"github.com/colplan/colplan/internal/schema"
)

func crmCustomers() schema.TableSchema {
	return schema.TableSchema{
		TableName: "crm_customers",
		Columns: []schema.ColumnDescriptor{
			{Name: "id", DeclaredType: "bigint", PrimaryKey: true},
			{Name: "company_name", DeclaredType: "text"},
			{Name: "industry", DeclaredType: "text", Nullable: true},
			{Name: "mrr", DeclaredType: "numeric", Nullable: true},
			{Name: "arr", DeclaredType: "numeric", Nullable: true},
		},
	}
}

func TestBuildQuerySelectsAllColumnsByDefault(t *testing.T) {
	queryText, args, err := buildQuery(crmCustomers(), Request{TableName: "crm_customers"}, 100)
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	want := `SELECT "id", "company_name", "industry", "mrr", "arr" FROM "crm_customers" LIMIT 101`
	if queryText != want {
		t.Fatalf("query = %q, want %q", queryText, want)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildQueryFiltersAreParameterizedAndSorted(t *testing.T) {
	req := Request{
		TableName: "crm_customers",
		Columns:   []string{"company_name", "arr"},
		Filters: map[string]any{
			"industry": "Healthcare",
			"arr":      map[string]any{">": 100_000.0},
		},
	}
	queryText, args, err := buildQuery(crmCustomers(), req, 50)
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	want := `SELECT "company_name", "arr" FROM "crm_customers" WHERE "arr" > $1 AND "industry" = $2 LIMIT 51`
	if queryText != want {
		t.Fatalf("query = %q, want %q", queryText, want)
	}
	if !reflect.DeepEqual(args, []any{100_000.0, "Healthcare"}) {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildQueryResolvesColumnSpelling(t *testing.T) {
	queryText, _, err := buildQuery(crmCustomers(), Request{Columns: []string{"MRR"}}, 10)
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	want := `SELECT "mrr" FROM "crm_customers" LIMIT 11`
	if queryText != want {
		t.Fatalf("query = %q, want %q", queryText, want)
	}
}

func TestBuildQueryRejectsUnknownColumns(t *testing.T) {
	_, _, err := buildQuery(crmCustomers(), Request{Columns: []string{"growth_rate"}}, 10)
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}

	_, _, err = buildQuery(crmCustomers(), Request{Filters: map[string]any{"growth_rate": 1}}, 10)
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("filter err = %v, want ErrUnknownColumn", err)
	}
}

func TestBuildQueryRejectsBadOperators(t *testing.T) {
	_, _, err := buildQuery(crmCustomers(), Request{Filters: map[string]any{"arr": map[string]any{"like": "x"}}}, 10)
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Fatalf("err = %v, want ErrUnsupportedOperator", err)
	}

	_, _, err = buildQuery(crmCustomers(), Request{Filters: map[string]any{"arr": map[string]any{">": 1, "<": 2}}}, 10)
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Fatalf("err = %v, want ErrUnsupportedOperator", err)
	}
}

func TestBuildQueryNotEqualMapsToStandardSQL(t *testing.T) {
	queryText, _, err := buildQuery(crmCustomers(), Request{Filters: map[string]any{"industry": map[string]any{"!=": "Retail"}}}, 10)
	if err != nil {
		t.Fatalf("buildQuery: %v", err)
	}
	want := `SELECT "id", "company_name", "industry", "mrr", "arr" FROM "crm_customers" WHERE "industry" <> $1 LIMIT 11`
	if queryText != want {
		t.Fatalf("query = %q, want %q", queryText, want)
	}
}
