package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	keySafeRe   = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)
	keyUnsafeRe = regexp.MustCompile(`[^a-z0-9_.-]+`)
)

// Key derives the storage key for a workflow name.
//
// Names that are already lower-case file-safe slugs are used as-is. Any
// other name becomes its slug plus "--" and a short hash of the exact name,
// so two distinct names never share a key. Plain slugs never contain "--",
// which keeps the two forms apart.
func Key(workflow string) string {
	if keySafeRe.MatchString(workflow) && !strings.Contains(workflow, "--") && !strings.Contains(workflow, "..") {
		return workflow
	}

	slug := keyUnsafeRe.ReplaceAllString(strings.ToLower(workflow), "-")
	slug = strings.Trim(slug, "-.")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "workflow"
	}

	sum := sha256.Sum256([]byte(workflow))
	return slug + "--" + hex.EncodeToString(sum[:])[:12]
}
