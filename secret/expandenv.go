package secret

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

var bracedVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnvStrict expands s against the process environment.
func ExpandEnvStrict(s string) (string, error) {
	return ExpandStrict(s, os.LookupEnv)
}

// ExpandStrict expands $VAR and ${VAR} in s using lookup.
//
// A ${VAR} whose variable is unset is an error wrapping ErrMissingEnv that
// lists every missing name. A bare $VAR that is unset expands to "". $$ emits
// a literal $.
func ExpandStrict(s string, lookup LookupFunc) (string, error) {
	const dollar = "\x00HEALOPS_DOLLAR\x00"
	s = strings.ReplaceAll(s, "$$", dollar)

	var missing []string
	seen := make(map[string]bool)
	for _, m := range bracedVarPattern.FindAllStringSubmatch(s, -1) {
		key := m[1]
		if _, ok := lookup(key); !ok && !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	s = os.Expand(s, func(key string) string {
		v, _ := lookup(key)
		return v
	})
	return strings.ReplaceAll(s, dollar, "$"), nil
}
