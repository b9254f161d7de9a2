// Package audit records security-relevant events: permission grants and
// denials, resolver failures on the authorization path, and login activity.
//
// Every sink is fire-and-forget from the caller's perspective. An audit
// write that fails is logged and dropped; it never delays or changes an
// authorization decision. The database sink owns its own schema and a
// cron-scheduled retention sweep bounds table growth.
package audit
