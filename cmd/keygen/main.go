// Command keygen prints a new API key and the hash to configure for it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ojedapedro/colegiopay/internal/core/security"
)

func main() {
	role := flag.String("role", string(security.RoleCashier), "cashier or reviewer")
	flag.Parse()

	var envVar string
	switch security.Role(*role) {
	case security.RoleCashier:
		envVar = "CASHIER_KEY_HASHES"
	case security.RoleReviewer:
		envVar = "REVIEWER_KEY_HASHES"
	default:
		slog.Error("❌ Unknown role", "role", *role)
		os.Exit(2)
	}

	key, hash, err := security.GenerateAPIKey()
	if err != nil {
		slog.Error("❌ Failed to generate key", "error", err)
		os.Exit(1)
	}

	fmt.Printf("API key (give to the %s, shown once): %s\n", *role, key)
	fmt.Printf("Add to %s: %s\n", envVar, hash)
}
