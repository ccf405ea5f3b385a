// Package config loads process configuration from environment variables.
// A local .env file is honored (godotenv) so development runs need no
// wrapper script; production sets the variables directly.
package config
