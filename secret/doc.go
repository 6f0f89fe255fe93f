// Package secret resolves API keys and passwords referenced from
// configuration.
//
// A value is first expanded strictly against the environment (see
// ExpandStrict), then any "secretref:" reference is resolved through a
// registered Provider:
//   - Environment:  secretref:env:OPENAI_API_KEY
//   - Mounted file: secretref:file:/run/secrets/telnyx_api_key
//   - Inline use:   Bearer secretref:env:RETELL_API_KEY
//
// Providers never log secret values.
package secret
