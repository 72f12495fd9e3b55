// Package registry persists named filter settings in a small SQLite
// database. It is the fallback configuration backend when no TOML file is
// present, keeping the setting names the filter has always used
// (ScriptFile, InputFormat_<name>, OutputThreads and friends).
package registry
