// Command tenantctl administers the tenant isolation schema: migrations, row
// policies and the audit trail of cross-tenant runs.
package main

import (
	"os"

	"github.com/dmitrymomot/tenantguard/internal/tenantctl"
)

func main() {
	os.Exit(tenantctl.Execute(os.Args[1:]))
}
