// Package common: this file holds small helpers shared by the cli and
// logging packages.
package common

// MaskSecret masks a sensitive string for safe logging: it shows the
// first and last 4 characters for strings longer than 8 characters,
// "***" for shorter non-empty strings, and "<not set>" for an empty
// string.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
