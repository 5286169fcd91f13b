package categorize

import (
	"fmt"
	"strings"
)

// Category is one label of the closed document category set.
type Category string

const (
	Finance      Category = "Finance"
	Security     Category = "Security"
	Architecture Category = "Architecture"
	Compliance   Category = "Compliance"
	Integrations Category = "Integrations"
)

// All lists every valid category in display order.
var All = []Category{Finance, Security, Architecture, Compliance, Integrations}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	for _, known := range All {
		if c == known {
			return true
		}
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory maps a raw label to a Category. It tolerates surrounding
// whitespace, quotes, a trailing period and case differences, nothing more.
func ParseCategory(raw string) (Category, error) {
	label := strings.TrimSpace(raw)
	label = strings.Trim(label, "\"'`")
	label = strings.TrimSuffix(label, ".")
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("%w: empty label", ErrInvalidCategoryResponse)
	}
	for _, known := range All {
		if strings.EqualFold(label, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not a known category", ErrInvalidCategoryResponse, truncate(label, 64))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
