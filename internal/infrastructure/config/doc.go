// Package config loads the daemon configuration from YAML with
// environment variable overrides (LUMA_SECTION_KEY). A missing file
// is not an error; defaults plus environment are used instead.
package config
