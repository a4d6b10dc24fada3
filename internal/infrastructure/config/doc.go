// Package config provides configuration loading for the ET-Bus hub daemon.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. The loading order is: hardcoded defaults, then YAML file
// values, then environment variables (ETBUS_SECTION_KEY pattern).
//
// All configuration is validated at load time so the daemon fails fast
// on startup rather than misbehaving later.
package config
