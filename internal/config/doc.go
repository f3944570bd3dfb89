// Package config handles configuration loading for coven-console.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from COVEN_CONSOLE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/console.toml
//  3. ~/.config/coven/console.toml
//
// A missing file is fine; built-in defaults apply.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	[tailscale]
//	auth_key = "${TS_AUTHKEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	[health]
//	base_delay = "1s"
//	max_delay = "30s"
//	poll_interval = "5s"
//
// # Runtime Base URL
//
// The backend URL is not baked in at build time. When api.base_url is empty,
// Resolver fetches api.config_url once (a JSON document carrying apiBaseUrl)
// and caches the answer for the life of the process. The last good value is
// also kept in the local store so an unreachable config endpoint does not
// strand the client.
//
//	res := config.NewResolver(cfg.API, httpClient, db, logger)
//	base, err := res.Resolve(ctx)
package config
