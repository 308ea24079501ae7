package scoped

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

const (
	DefaultKeyColumn    = "id"
	DefaultTenantColumn = "tenant_id"
)

// Table describes a tenant-scoped table to the repository.
type Table struct {
	Name string
	// Columns are selected and returned by writes. They must include the
	// tenant column; empty selects every column.
	Columns      []string
	KeyColumn    string
	TenantColumn string
}

func (t Table) withDefaults() (Table, error) {
	if t.Name == "" {
		return t, fmt.Errorf("%w: table name is required", ErrInvalidTable)
	}
	if t.KeyColumn == "" {
		t.KeyColumn = DefaultKeyColumn
	}
	if t.TenantColumn == "" {
		t.TenantColumn = DefaultTenantColumn
	}
	if len(t.Columns) > 0 && !slices.Contains(t.Columns, t.TenantColumn) {
		return t, fmt.Errorf("%w: %s columns must include %s", ErrInvalidTable, t.Name, t.TenantColumn)
	}
	return t, nil
}

func (t Table) selectColumns() []string {
	if len(t.Columns) == 0 {
		return []string{"*"}
	}
	return t.Columns
}

// Values are column values for Insert and Update.
type Values map[string]any

func (v Values) clone() Values {
	out := make(Values, len(v)+1)
	for k, val := range v {
		out[k] = val
	}
	return out
}

// tenantKeys returns the keys of v naming the tenant column, sorted. Postgres
// folds unquoted identifiers, so "TENANT_ID" and "Tenant_Id" write the same
// column as "tenant_id".
func (t Table) tenantKeys(v Values) []string {
	var keys []string
	for k := range v {
		if strings.EqualFold(strings.Trim(k, `"`), t.TenantColumn) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// tenantString normalizes a tenant column value as decoded by pgx so it can be
// compared with the scope's tenant id.
func tenantString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *string:
		if t == nil {
			return ""
		}
		return *t
	case [16]byte:
		return uuid.UUID(t).String()
	case uuid.UUID:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
