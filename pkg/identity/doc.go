// Package identity establishes who the caller is. It wraps OpenID Connect
// discovery, the authorization-code login flow, and bearer ID token
// verification, and exposes the resulting Identity to the middleware layer.
//
// Authentication stops here: what the identity may do inside a workspace
// is the authorization service's concern, not this package's.
package identity
