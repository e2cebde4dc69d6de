package resolve

import "strings"

// Phone lookups try an ordered list of normalization passes rather than one
// clever regex: upstream systems (telephony, web forms) store numbers in
// inconsistent layouts, and the tie-break order must stay explicit and
// testable.
type phoneNormalizer func(string) string

var phoneNormalizers = []phoneNormalizer{
	asGiven,
	digitsOnly,
	tenDigits,
	e164,
	nanp,
}

// PhoneVariants returns the lookup candidates for a phone number: as given,
// digits only, bare ten-digit NANP, E.164, and parenthesized NANP,
// deduplicated in that order. Each stored layout must be reachable from
// every input layout, so the chain emits all canonical forms.
func PhoneVariants(phone string) []string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}

	seen := make(map[string]bool, len(phoneNormalizers))
	var out []string
	for _, normalize := range phoneNormalizers {
		v := normalize(phone)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func asGiven(s string) string { return s }

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tenDigits extracts a NANP subscriber number, tolerating a leading country
// code 1.
func tenDigits(s string) string {
	d := digitsOnly(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return d
}

func e164(s string) string {
	d := tenDigits(s)
	if d == "" {
		return ""
	}
	return "+1" + d
}

func nanp(s string) string {
	d := tenDigits(s)
	if d == "" {
		return ""
	}
	return "(" + d[0:3] + ") " + d[3:6] + "-" + d[6:10]
}
