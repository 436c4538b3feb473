// token-gen mints an HS256 dev token for calling the APIs locally.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/studymatch/studymatch/libs/auth"
)

func main() {
	var (
		userID = flag.String("user-id", getenv("USER_ID", ""), "subject claim (user id)")
		role   = flag.String("role", getenv("ROLE", "student"), "role claim")
		secret = flag.String("secret", getenv("JWT_SECRET", ""), "shared HS256 signing secret")
		ttl    = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("JWT_SECRET is required")
	}
	if strings.TrimSpace(*userID) == "" {
		fatal("USER_ID is required")
	}

	now := time.Now().UTC()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  *userID,
		Role: *role,
		Iat:  now.Unix(),
		Exp:  now.Add(*ttl).Unix(),
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}

	fmt.Println(token)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
