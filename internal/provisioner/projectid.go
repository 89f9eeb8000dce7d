package provisioner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/runvoy/keyforge/internal/constants"
	appErrors "github.com/runvoy/keyforge/internal/errors"
)

var (
	projectIDPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$`)
	invalidIDChars   = regexp.MustCompile(`[^a-z0-9-]+`)
	repeatedHyphens  = regexp.MustCompile(`-{2,}`)
)

// SuffixFunc returns the random part of a project id.
type SuffixFunc func() string

// RandomSuffix derives a suffix from a random UUID.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:constants.ProjectIDSuffixLength]
}

// GenerateProjectID builds <prefix>-<suffix>, normalizing the prefix so the
// result is a valid project id. The id is validated before it is returned.
func GenerateProjectID(prefix string, suffix SuffixFunc) (string, error) {
	if suffix == nil {
		suffix = RandomSuffix
	}

	s := strings.ToLower(suffix())
	p := normalizePrefix(prefix)
	if maxPrefix := constants.ProjectIDMaxLength - len(s) - 1; len(p) > maxPrefix {
		p = strings.TrimRight(p[:maxPrefix], "-")
	}
	if p == "" {
		p = constants.DefaultProjectPrefix
	}

	id := p + "-" + s
	if err := ValidateProjectID(id); err != nil {
		return "", err
	}
	return id, nil
}

// ValidateProjectID checks the Google Cloud project id rules.
func ValidateProjectID(id string) error {
	if len(id) < constants.ProjectIDMinLength || len(id) > constants.ProjectIDMaxLength {
		return appErrors.ErrInvalidProjectID(
			fmt.Sprintf("project id %q must be %d to %d characters long",
				id, constants.ProjectIDMinLength, constants.ProjectIDMaxLength), nil)
	}
	if !projectIDPattern.MatchString(id) {
		return appErrors.ErrInvalidProjectID(
			fmt.Sprintf("project id %q must start with a letter and contain only lowercase letters, digits and hyphens", id), nil)
	}
	return nil
}

func normalizePrefix(prefix string) string {
	p := strings.ToLower(strings.TrimSpace(prefix))
	p = invalidIDChars.ReplaceAllString(p, "-")
	p = repeatedHyphens.ReplaceAllString(p, "-")
	p = strings.TrimLeft(p, "-0123456789")
	return strings.TrimRight(p, "-")
}
