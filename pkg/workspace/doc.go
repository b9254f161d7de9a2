// Package workspace holds the PostgreSQL adapter for workspace and
// membership reads, plus the schema migrations for both tables. The store
// is the authorization service's only view of membership state; everything
// it returns is active-rows-only, so callers never have to re-check the
// is_active flag.
package workspace
