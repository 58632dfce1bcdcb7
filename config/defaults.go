package config

import (
	"os"
	"strings"
)

// Defaults are the fallback entities the engine resolves against when a
// command does not name a party, and the organization every order is booked
// under. Resolved once at engine construction, never read mid-transition.
type Defaults struct {
	CustomerName     string
	OrganizationName string
	Currency         string
}

func LoadDefaults() Defaults {
	return Defaults{
		CustomerName:     envOrDefault("DEFAULT_CUSTOMER_NAME", "Anonymous Traders"),
		OrganizationName: envOrDefault("DEFAULT_ORGANIZATION_NAME", "Selmel Liquors"),
		Currency:         envOrDefault("DEFAULT_CURRENCY", "INR"),
	}
}

func envOrDefault(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
