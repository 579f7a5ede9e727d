// Package config loads runtime configuration for the buildr CLI.
//
// Sources and precedence, later sources win:
//
//  1. Built-in defaults (see Default).
//  2. Optional JSON file: an explicit path, or <root>/config.json when present.
//  3. Environment: JEKYLL_STUDIO_API_URL, BUILDR_HOME, BUILDR_LOG_LEVEL,
//     BUILDR_LOG_FORMAT.
//  4. Command-line overrides supplied by the caller.
//
// String values are then passed through a secret.Resolver, so ${VAR} and
// secretref:<provider>:<ref> forms are expanded before validation.
//
// # JSON schema
//
// Durations accept either strings like "3s" or integer nanoseconds:
//
//	{
//	  "api_url": "https://jekyll-buildr.vercel.app/api",
//	  "login": {"poll_interval": "3s", "timeout": "5m"},
//	  "cache": {"max_bytes": 52428800, "default_ttl": "24h"},
//	  "log": {"level": "debug", "format": "json"}
//	}
package config
