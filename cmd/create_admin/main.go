// Command create_admin hashes an admin password and writes the credential file
// the catalog server reads when ADMIN_USERNAME/ADMIN_PASSWORD_HASH are unset.
//
//	ADMIN_USERNAME=admin ADMIN_PASSWORD=secret create_admin
//	create_admin [-file auth.json] admin secret
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/affiliate_catalog/internal/config"
	"github.com/Skotchmaster/affiliate_catalog/internal/credentials"
	"github.com/Skotchmaster/affiliate_catalog/internal/hash"
	"github.com/Skotchmaster/affiliate_catalog/internal/models"
)

var errUsage = errors.New("usage: create_admin [-file path] [-cost n] <username> <password> (or set ADMIN_USERNAME and ADMIN_PASSWORD)")

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env not loaded: %v, using system environment", err)
	}
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg := config.FromEnv()

	fs := flag.NewFlagSet("create_admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", cfg.AuthFile, "credential file to write")
	cost := fs.Int("cost", cfg.BcryptCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	username := cfg.AdminUsername
	password := os.Getenv("ADMIN_PASSWORD")
	rest := fs.Args()
	if username == "" && len(rest) > 0 {
		username = rest[0]
	}
	if password == "" && len(rest) > 1 {
		password = rest[1]
	}
	if username == "" || password == "" {
		return errUsage
	}

	h, err := hash.HashPassword(password, *cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	cred := models.AdminCredential{Username: username, PasswordHash: h}
	if err := credentials.Write(*file, cred); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "wrote %s\n", *file)
	fmt.Fprintf(stdout, "ADMIN_USERNAME=%s\nADMIN_PASSWORD_HASH=%s\n", cred.Username, cred.PasswordHash)
	return nil
}
