package dispatch

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/pubnect/dispatch/internal/core"
)

// CodeVar is the reserved template variable carrying the generated
// registration code. A caller-supplied value takes precedence over
// generation.
const CodeVar = "unique_code"

// RegistrationLinkVar is the template variable carrying the configured
// registration link.
const RegistrationLinkVar = "registration_link"

// placeholderPattern matches named placeholders of the form {name}.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Renderer fills a message template with per-recipient variables.
// It is stateless and safe for concurrent use.
type Renderer struct{}

// NewRenderer creates a new template renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render substitutes every {placeholder} in the template with its value
// from vars. Every placeholder referenced by the template must be present
// in vars; extra variables are ignored. A missing placeholder returns a
// TemplateError, which the pipeline treats as non-retryable.
func (r *Renderer) Render(template string, vars core.Vars) (string, error) {
	var missing string

	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return value
	})

	if missing != "" {
		return "", NewTemplateError(missing, "placeholder has no matching variable")
	}

	return out, nil
}

// Placeholders returns the distinct placeholder names referenced by the
// template, in order of first appearance.
func (r *Renderer) Placeholders(template string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		name := match[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// GenerateCode returns a random registration code in [10000, 99999].
// Codes are random, not unique: collisions across recipients are possible.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return "", fmt.Errorf("generate registration code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+10000), nil
}
