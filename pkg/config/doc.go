// Package config loads application configuration from BRIGHTPATH_* environment
// variables and validates it before the server starts.
package config
