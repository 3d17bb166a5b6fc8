package api

import (
	"bufio"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// Credentials holds htpasswd users allowed to call the API. Supported hashes
// are bcrypt ($2a$, $2b$, $2y$) and {SHA}.
type Credentials struct {
	users map[string]string
}

// LoadCredentials reads htpasswd lines from the file at input, or parses
// input itself as inline user:hash lines when no such file exists.
func LoadCredentials(input string) (*Credentials, error) {
	if _, err := os.Stat(input); err == nil {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("failed to open htpasswd file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		return ParseCredentials(f)
	}

	return ParseCredentials(strings.NewReader(input))
}

// ParseCredentials reads htpasswd lines. Blank lines and # comments are
// skipped.
func ParseCredentials(r io.Reader) (*Credentials, error) {
	creds := &Credentials{users: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		user, hash, ok := strings.Cut(line, ":")
		user, hash = strings.TrimSpace(user), strings.TrimSpace(hash)
		if !ok || user == "" || hash == "" {
			return nil, fmt.Errorf("line %d: invalid htpasswd format: expected user:hash", lineNum)
		}
		if !supportedHash(hash) {
			return nil, fmt.Errorf("line %d: unsupported hash for user %q, use bcrypt", lineNum, user)
		}
		creds.users[user] = hash
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	if len(creds.users) == 0 {
		return nil, fmt.Errorf("no valid credentials found")
	}

	return creds, nil
}

func supportedHash(hash string) bool {
	return isBcrypt(hash) || strings.HasPrefix(hash, "{SHA}")
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2y$") || strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$")
}

// Authenticate checks if the provided username and password are valid
func (c *Credentials) Authenticate(username, password string) bool {
	hash, ok := c.users[username]
	if !ok {
		return false
	}

	if isBcrypt(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hash, "{SHA}"))
	if err != nil {
		return false
	}
	sum := sha1.Sum([]byte(password))
	return subtle.ConstantTimeCompare(decoded, sum[:]) == 1
}

// UserCount returns the number of configured users
func (c *Credentials) UserCount() int {
	return len(c.users)
}

// BasicAuthMiddleware rejects requests without valid basic auth credentials
func BasicAuthMiddleware(creds *Credentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || !creds.Authenticate(username, password) {
			c.Header("WWW-Authenticate", `Basic realm="filestore"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Error: "unauthorized"})
			return
		}

		c.Set("user", username)
		c.Next()
	}
}
