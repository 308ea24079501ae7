package rowpolicy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultTenantColumn is the column every tenant-scoped table carries.
const DefaultTenantColumn = "tenant_id"

// settingPattern restricts setting names to the two-part form Postgres
// accepts for custom settings; they are embedded as SQL literals.
var settingPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*\.[a-z_][a-z0-9_]*$`)

// Policy describes the row policy of one tenant-scoped table. Rows are
// visible and writable when their tenant column equals the tenant bound to
// the session, or when the session carries the privileged marker.
type Policy struct {
	// Table may be schema-qualified ("sales.orders").
	Table string
	// TenantColumn defaults to DefaultTenantColumn.
	TenantColumn string
	// Name defaults to "<table>_tenant_isolation".
	Name string
}

func (p Policy) column() string {
	if p.TenantColumn == "" {
		return DefaultTenantColumn
	}
	return p.TenantColumn
}

func (p Policy) name() string {
	if p.Name != "" {
		return p.Name
	}
	parts := strings.Split(p.Table, ".")
	return parts[len(parts)-1] + "_tenant_isolation"
}

func (p Policy) validate() error {
	if strings.TrimSpace(p.Table) == "" {
		return ErrInvalidPolicy
	}
	return nil
}

func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Statements returns the DDL that installs the policy. Statements are
// idempotent so they can be re-applied after a table changes.
func (p Policy) Statements() []string {
	table := quoteTable(p.Table)
	col := quoteIdent(p.column())
	name := quoteIdent(p.name())
	trigger := quoteIdent(p.name() + "_immutable")
	// The cast lets uuid and integer tenant columns compare with the text
	// setting.
	predicate := fmt.Sprintf("%s::text = app_current_tenant() OR app_is_privileged()", col)

	return []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, col),
		fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", table),
		// FORCE applies the policy to the table owner as well.
		fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", table),
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", name, table),
		fmt.Sprintf("CREATE POLICY %s ON %s USING (%s) WITH CHECK (%s)", name, table, predicate, predicate),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", trigger, table),
		fmt.Sprintf("CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION app_tenant_column_immutable(%s)",
			trigger, table, quoteLiteral(p.column())),
	}
}

// DownStatements returns the DDL that removes the policy.
func (p Policy) DownStatements() []string {
	table := quoteTable(p.Table)
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", quoteIdent(p.name()+"_immutable"), table),
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", quoteIdent(p.name()), table),
		fmt.Sprintf("ALTER TABLE %s NO FORCE ROW LEVEL SECURITY", table),
		fmt.Sprintf("ALTER TABLE %s DISABLE ROW LEVEL SECURITY", table),
	}
}

// FunctionStatements redefines the session helper functions for custom
// setting names. The bundled migrations define them for app.tenant_id and
// app.privileged.
func FunctionStatements(tenantSetting, privilegedSetting string) ([]string, error) {
	if !settingPattern.MatchString(tenantSetting) || !settingPattern.MatchString(privilegedSetting) {
		return nil, ErrInvalidSetting
	}
	return []string{
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION app_current_tenant() RETURNS text LANGUAGE sql STABLE AS $$ SELECT NULLIF(current_setting(%s, true), '') $$`,
			quoteLiteral(tenantSetting)),
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION app_is_privileged() RETURNS boolean LANGUAGE sql STABLE AS $$ SELECT COALESCE(current_setting(%s, true), 'off') = 'on' $$`,
			quoteLiteral(privilegedSetting)),
	}, nil
}

// MigrationSQL renders policies as a goose migration file, so each
// tenant-scoped table ships its policy next to its schema.
func MigrationSQL(policies ...Policy) (string, error) {
	var b strings.Builder
	b.WriteString("-- +goose Up\n")
	for _, p := range policies {
		if err := p.validate(); err != nil {
			return "", err
		}
		for _, stmt := range p.Statements() {
			b.WriteString(stmt)
			b.WriteString(";\n")
		}
	}
	b.WriteString("\n-- +goose Down\n")
	for i := len(policies) - 1; i >= 0; i-- {
		for _, stmt := range policies[i].DownStatements() {
			b.WriteString(stmt)
			b.WriteString(";\n")
		}
	}
	return b.String(), nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
