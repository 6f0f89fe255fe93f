// Package auth authenticates operators of the healops admin surface.
//
// Credentials are an API key in X-API-Key or an HMAC-signed JWT bearer
// token. Middleware attaches the resulting Identity to the request context
// and RequireRole gates handlers on a role such as RoleOperator.
package auth
