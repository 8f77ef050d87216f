// Package secret resolves credentials referenced from cache configuration.
//
// Remote cache connection strings usually carry a password. Rather than
// placing it in plain configuration, the value may reference it:
//
//   - Environment expansion: redis://:${REDIS_PASSWORD}@cache:6379/0
//   - Whole value:           secretref:file:/run/secrets/redis_url
//   - Embedded:              redis://:secretref:env:REDIS_PASSWORD@cache:6379/0
//
// Providers are pluggable; EnvProvider and FileProvider are built in and
// registered by DefaultResolver.
package secret
