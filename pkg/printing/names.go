package printing

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// Some vendor drivers hand out UTF-8 display names that went through a GBK code page on the way,
// so the unit in names like "4 x 6 英寸" arrives garbled.
const inchUnit = "英寸"

// Sanitizer repairs known garbled substrings in driver supplied names. Every name that is listed,
// reported or compared goes through the same Sanitizer.
type Sanitizer struct {
	replacer *strings.Replacer
}

// NewSanitizer builds a sanitizer with the built-in rule plus extra rules written as "garbled=fixed".
func NewSanitizer(rules ...string) (*Sanitizer, error) {
	var pairs []string

	if garbled := gbkMojibake(inchUnit); garbled != "" && garbled != inchUnit {
		pairs = append(pairs, garbled, inchUnit)
	}

	for _, rule := range rules {
		from, to, ok := strings.Cut(rule, "=")
		if !ok || from == "" {
			return nil, fmt.Errorf("invalid name replacement %q, expected garbled=fixed", rule)
		}

		pairs = append(pairs, from, to)
	}

	return &Sanitizer{replacer: strings.NewReplacer(pairs...)}, nil
}

func (s *Sanitizer) Sanitize(name string) string {
	if s == nil || s.replacer == nil {
		return name
	}

	return s.replacer.Replace(name)
}

// gbkMojibake returns s as it reads after its UTF-8 bytes are decoded as GBK.
func gbkMojibake(s string) string {
	out, err := simplifiedchinese.GBK.NewDecoder().String(s)
	if err != nil {
		return ""
	}

	return out
}
