package repo

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// DefaultTable is the saved cart table used when none is configured.
const DefaultTable = "shoppingcart"

var (
	// ErrRecordNotFound is returned when no saved cart matches the identifier.
	ErrRecordNotFound = errors.New("saved cart not found")
	// ErrDuplicate is returned when (identifier, instance) is already taken.
	ErrDuplicate = errors.New("saved cart already exists")
)

// SavedCart is a durable copy of one cart instance, keyed by an external identifier.
// Content is the serialised line mapping and is opaque to storage.
type SavedCart struct {
	Identifier string
	Instance   string
	Content    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// normalizeTable guards the configured table name before it is interpolated into SQL.
func normalizeTable(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultTable, nil
	}
	if !tableName.MatchString(name) {
		return "", errors.New("repo: invalid saved cart table name")
	}
	return name, nil
}
