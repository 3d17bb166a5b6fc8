package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var htpasswdCmd = &cobra.Command{
	Use:   "htpasswd <username>",
	Short: "Generate an htpasswd line for the API",
	Long: `Generate a bcrypt password hash for use with serve --auth.basic.

Examples:
  # Interactive password prompt
  filestore htpasswd admin

  # Pipe password from stdin
  echo "mypassword" | filestore htpasswd admin >> /etc/filestore/htpasswd`,
	Args: cobra.ExactArgs(1),
	RunE: runHtpasswd,
}

var htpasswdCost int

func init() {
	htpasswdCmd.Flags().IntVarP(&htpasswdCost, "cost", "c", bcrypt.DefaultCost, "bcrypt cost factor")
}

func runHtpasswd(cmd *cobra.Command, args []string) error {
	username := args[0]
	if username == "" || strings.Contains(username, ":") {
		return fmt.Errorf("username must be non-empty and cannot contain ':'")
	}
	if htpasswdCost < bcrypt.MinCost || htpasswdCost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), htpasswdCost)
	if err != nil {
		return fmt.Errorf("failed to generate hash: %w", err)
	}

	fmt.Printf("%s:%s\n", username, hash)
	return nil
}

func readPassword() (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	prompt := func(label string) ([]byte, error) {
		fmt.Fprint(os.Stderr, label)
		defer fmt.Fprintln(os.Stderr)
		return term.ReadPassword(fd)
	}

	password, err := prompt("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := prompt("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	return string(password), nil
}
