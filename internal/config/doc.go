// Package config loads, normalizes, and validates synthfilter settings.
//
// Settings come from one of two backends. A TOML file (explicit path,
// ~/.config/synthfilter/config.toml, or synthfilter.toml beside the
// executable) wins when present. Otherwise the SQLite settings registry is
// consulted using the filter's historical setting names. When neither
// exists the repository defaults apply.
//
// Always obtain settings through this package so downstream code receives
// expanded paths, a complete input-format table, and clear validation errors.
package config
