// Package config loads, defaults, and validates the TOML configuration shared
// by every loopforge stage process. The resulting Config is constructed once
// at process entry and passed explicitly into component constructors.
package config
