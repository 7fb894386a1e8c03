// Package identity resolves the acting user.
package identity

import (
	"os"
	"os/user"
	"strings"

	"github.com/google/uuid"
)

// Anonymous is used when no name can be found anywhere.
const Anonymous = "anonymous"

// User is the acting user. Name is what authorship and hosting compare
// against; ID is derived from it and stable across runs.
type User struct {
	ID   string
	Name string
}

// Resolve picks the first non-blank of name, $CORKBOARD_USER and the login
// name of the OS user.
func Resolve(name string) User {
	candidates := []string{name, os.Getenv("CORKBOARD_USER")}
	if u, err := user.Current(); err == nil {
		candidates = append(candidates, u.Username)
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return New(c)
		}
	}
	return New(Anonymous)
}

// New returns the user called name.
func New(name string) User {
	return User{
		ID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("corkboard:"+name)).String(),
		Name: name,
	}
}
