// Command setup-keys bootstraps the encrypted credential file the engine
// reads broker and webhook secrets from at startup (internal/creds).
// Adapted from the teacher's cmd/_ref_setup-keys one-shot key-derivation
// CLI, generalized from a single hardcoded Polymarket key into a scope/value
// pair an operator can run once per credential.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/traderterminal/core/internal/creds"
)

func main() {
	filePath := flag.String("file", "", "path to the encrypted credential file (required)")
	passphrase := flag.String("passphrase", "", "passphrase protecting the credential file (required; also read from SETUP_KEYS_PASSPHRASE)")
	scope := flag.String("scope", "", "credential scope, e.g. tradovate:main or webhook:hmac_secret (required)")
	value := flag.String("value", "", "secret value to store; if omitted, read from SETUP_KEYS_VALUE")
	flag.Parse()

	if strings.TrimSpace(*passphrase) == "" {
		*passphrase = os.Getenv("SETUP_KEYS_PASSPHRASE")
	}
	if strings.TrimSpace(*value) == "" {
		*value = os.Getenv("SETUP_KEYS_VALUE")
	}

	if *filePath == "" || *passphrase == "" || *scope == "" || *value == "" {
		log.Fatal("setup-keys: -file, -passphrase, -scope, and -value (or SETUP_KEYS_PASSPHRASE / SETUP_KEYS_VALUE) are all required")
	}

	store, err := creds.New(*filePath, *passphrase)
	if err != nil {
		log.Fatalf("setup-keys: open credential file: %v", err)
	}
	if err := store.Put(creds.Scope(*scope), *value); err != nil {
		log.Fatalf("setup-keys: write secret: %v", err)
	}

	fmt.Println("=== credential stored ===")
	fmt.Println()
	fmt.Printf("scope: %s\n", *scope)
	fmt.Printf("file:  %s\n", *filePath)
	fmt.Println()
	fmt.Println("the running engine will pick this up from its configured credential file on next start.")
}
