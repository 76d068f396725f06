// Package env reads process environment variables that sit outside the
// envconfig-managed PLATEFUL_ namespace, such as LOG_FORMAT.
package env

import "os"

// Get returns the variable's value, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
