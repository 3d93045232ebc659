// Command tokengen mints an operator token for the admin API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jengzang/traffic-backend-go/internal/config"
	"github.com/jengzang/traffic-backend-go/internal/middleware"
)

func main() {
	name := flag.String("name", "operator", "token subject")
	role := flag.String("role", middleware.RoleOperator, "role claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := middleware.GenerateToken([]byte(cfg.JWTSecret), *name, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
