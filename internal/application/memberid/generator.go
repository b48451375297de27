// Package memberid derives human-readable member identifiers of the form
// <initial><yy><nn>, e.g. A0101 for the first "Alice" born in 2001.
package memberid

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/member-auth/internal/domain"
)

// maxSequence is the largest two-digit suffix a prefix can carry.
const maxSequence = 99

type prefixIndex interface {
	HighestIDWithPrefix(ctx context.Context, prefix string) (string, bool, error)
}

// Generator reads the current highest id for a prefix and proposes the next.
// It does not reserve the id; the caller's insert must be conditional.
type Generator struct {
	members prefixIndex
}

func NewGenerator(members prefixIndex) *Generator {
	return &Generator{members: members}
}

// Prefix returns the uppercase first letter of fullName followed by the last
// two digits of the birth year.
func Prefix(fullName string, dob time.Time) (string, error) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return "", fmt.Errorf("full name required: %w", domain.ErrBadRequest)
	}
	r, _ := utf8.DecodeRuneInString(name)
	return fmt.Sprintf("%c%02d", unicode.ToUpper(r), dob.Year()%100), nil
}

// Generate returns the next free-looking id for fullName and dob.
func (g *Generator) Generate(ctx context.Context, fullName string, dob time.Time) (string, error) {
	prefix, err := Prefix(fullName, dob)
	if err != nil {
		return "", err
	}
	highest, ok, err := g.members.HighestIDWithPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("lookup highest id for %s: %w", prefix, err)
	}
	if !ok {
		return format(prefix, 1)
	}
	seq, err := sequenceOf(highest, prefix)
	if err != nil {
		return "", err
	}
	return format(prefix, seq+1)
}

// Next returns the id following id under the same prefix. Used when an
// insert lost a race and the prefix index has not caught up yet.
func Next(id string) (string, error) {
	if len(id) < 3 {
		return "", fmt.Errorf("malformed member id %q", id)
	}
	prefix := id[:len(id)-2]
	seq, err := sequenceOf(id, prefix)
	if err != nil {
		return "", err
	}
	return format(prefix, seq+1)
}

func format(prefix string, seq int) (string, error) {
	if seq > maxSequence {
		return "", fmt.Errorf("prefix %s: %w", prefix, domain.ErrCapacityExceeded)
	}
	return fmt.Sprintf("%s%02d", prefix, seq), nil
}

func sequenceOf(id, prefix string) (int, error) {
	suffix := strings.TrimPrefix(id, prefix)
	if len(suffix) != 2 {
		return 0, fmt.Errorf("malformed member id %q", id)
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("malformed member id %q: %w", id, err)
	}
	return n, nil
}
