// Command mktoken mints a bearer token for the diagnostics API.
//
// The token is printed to stdout so it can be captured directly:
//
//	export TOKEN=$(mktoken -operator alice)
//	curl -H "Authorization: Bearer $TOKEN" http://localhost:8080/api/datastore
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"email-router/internal/auth"
)

func main() {
	operator := flag.String("operator", "", "operator name embedded in the token subject")
	secret := flag.String("secret", "", "signing secret, defaults to API_TOKEN_SECRET")
	flag.Parse()

	if *operator == "" {
		fmt.Fprintln(os.Stderr, "usage: mktoken -operator <name> [-secret <secret>]")
		os.Exit(1)
	}

	_ = godotenv.Load()

	signingSecret := *secret
	if signingSecret == "" {
		signingSecret = os.Getenv("API_TOKEN_SECRET")
	}
	if signingSecret == "" {
		fmt.Fprintln(os.Stderr, "mktoken: no signing secret, set API_TOKEN_SECRET or pass -secret")
		os.Exit(1)
	}

	token, expires, err := auth.New(signingSecret).GenerateToken(*operator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mktoken: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires: %s\n", expires.Format(time.RFC3339))
}
