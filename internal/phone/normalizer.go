// Package phone canonicalizes phone numbers so that differently typed
// inputs compare equal.
package phone

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when no region hint is configured.
const DefaultRegion = "ID"

var phoneShape = regexp.MustCompile(`^\+?[0-9][0-9 ()\-.]{6,20}$`)

// Normalizer turns phone strings into E.164 form for one default region.
type Normalizer struct {
	region      string
	countryCode string
}

// NewNormalizer creates a normalizer. An unknown region falls back to
// DefaultRegion.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	cc := phonenumbers.GetCountryCodeForRegion(region)
	if cc == 0 {
		region = DefaultRegion
		cc = phonenumbers.GetCountryCodeForRegion(region)
	}
	return &Normalizer{region: region, countryCode: strconv.Itoa(cc)}
}

// Region returns the default region.
func (n *Normalizer) Region() string { return n.region }

// Normalize returns the canonical form of raw. Malformed input still yields
// a best-effort "+digits" string; it never fails.
func (n *Normalizer) Normalize(raw string) string {
	cleaned := clean(raw)
	if cleaned == "" || cleaned == "+" {
		return ""
	}

	candidate := n.international(cleaned)
	if candidate == "+" {
		return ""
	}
	num, err := phonenumbers.Parse(candidate, n.region)
	if err != nil {
		return candidate
	}
	formatted := phonenumbers.Format(num, phonenumbers.E164)
	if formatted == "" || formatted == "+0" {
		return candidate
	}
	return formatted
}

// Equal compares two phone strings by canonical form.
func (n *Normalizer) Equal(a, b string) bool {
	ca, cb := n.Normalize(a), n.Normalize(b)
	return ca != "" && ca == cb
}

// IsValid reports whether raw is a dialable number according to
// libphonenumber metadata.
func (n *Normalizer) IsValid(raw string) bool {
	num, err := phonenumbers.Parse(n.international(clean(raw)), n.region)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Variants expands raw into the shapes a phone may have been stored in:
// the raw input, digits only, +digits, the canonical form, the local
// leading-zero form and the country-code-prefixed form. The raw input is
// always first.
func (n *Normalizer) Variants(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	canonical := n.Normalize(raw)
	digits := strings.TrimPrefix(clean(raw), "+")
	national := strings.TrimPrefix(strings.TrimPrefix(canonical, "+"), n.countryCode)

	out := make([]string, 0, 6)
	seen := make(map[string]struct{}, 6)
	add := func(v string) {
		if v == "" || v == "+" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	add(raw)
	add(digits)
	add("+" + digits)
	add(canonical)
	if strings.HasPrefix(canonical, "+"+n.countryCode) {
		add("0" + national)
		add(n.countryCode + national)
	}
	return out
}

// Mask hides all but the country prefix and last three digits.
func (n *Normalizer) Mask(raw string) string {
	canonical := n.Normalize(raw)
	if len(canonical) < 7 {
		return "****"
	}
	prefix := "+"
	if num, err := phonenumbers.Parse(canonical, n.region); err == nil {
		prefix = "+" + strconv.Itoa(int(num.GetCountryCode()))
	}
	return prefix + "****" + canonical[len(canonical)-3:]
}

// LooksLikePhone reports whether an identifier has the shape of a phone
// number rather than an email or short code.
func LooksLikePhone(s string) bool {
	return phoneShape.MatchString(strings.TrimSpace(s))
}

// international rewrites a cleaned string into +<cc><national> form.
func (n *Normalizer) international(cleaned string) string {
	switch {
	case strings.HasPrefix(cleaned, "+"):
		return cleaned
	case strings.HasPrefix(cleaned, "00"):
		return "+" + cleaned[2:]
	case strings.HasPrefix(cleaned, "0"):
		return "+" + n.countryCode + strings.TrimLeft(cleaned, "0")
	case strings.HasPrefix(cleaned, n.countryCode) && len(cleaned) > len(n.countryCode)+6:
		return "+" + cleaned
	default:
		return "+" + n.countryCode + cleaned
	}
}

// clean keeps digits and a single leading plus.
func clean(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
