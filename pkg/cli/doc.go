// Package cli implements the loomctl command set: permission checks,
// permission listings, and cache invalidation against a running loomd.
package cli
