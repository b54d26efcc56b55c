// Package file provides the TOML file-backed implementation of the
// ConfigStore driven port. Harvest defaults live under ~/.oaisync by
// default and can be relocated for tests.
package file
