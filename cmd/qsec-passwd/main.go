package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"qsec/internal/config"
	"qsec/internal/middleware"

	"golang.org/x/term"
)

const minPasswordLength = 8

func main() {
	configPath := flag.String("config", config.DefaultFile, "Path to qsec.config")
	username := flag.String("username", "", "Operator username (defaults to the configured admin_user)")
	password := flag.String("password", "", "New password (leave blank to type securely)")
	enable := flag.Bool("enable", true, "Turn on API authentication after setting the password")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if u := strings.TrimSpace(*username); u != "" {
		cfg.AdminUser = u
	}

	pwd, err := resolvePassword(*password, promptPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "password error: %v\n", err)
		os.Exit(1)
	}

	hash, err := middleware.HashPassword(pwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	cfg.AdminPasswordHash = hash
	if *enable {
		cfg.AuthEnabled = true
	}

	if err := cfg.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated password for %s.\n", cfg.AdminUser)
	if cfg.UsingDefaultSecret() {
		fmt.Println("Note: jwt_secret is still the default; set it before exposing the API.")
	}
	fmt.Printf("config: %s\n", cfg.File)
}

// resolvePassword returns input when given, otherwise prompts twice.
func resolvePassword(input string, prompt func(string) (string, error)) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed != "" {
		if len(trimmed) < minPasswordLength {
			return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
		}
		return trimmed, nil
	}

	first, err := prompt("Enter new password: ")
	if err != nil {
		return "", err
	}
	second, err := prompt("Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return first, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		bytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	text, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
