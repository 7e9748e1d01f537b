package env

import "os"

// Get returns the environment variable's value, or fallback when the
// variable is unset or empty. Used for knobs read before the typed
// config is loaded, such as the log format.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
