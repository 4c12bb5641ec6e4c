// Package config loads, validates, and watches the feedrace YAML
// configuration.
//
// Load applies defaults for absent optional fields and rejects structurally
// invalid files. Watch re-loads the file on change and hands the new Config
// to the caller; only the report interval is applied live, everything else
// needs a restart.
package config
