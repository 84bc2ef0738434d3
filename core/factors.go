package core

import "strings"

// AddressFactors is the knowledge factor a caller presents to climb from
// level 2 to level 3. At least one field must be set.
type AddressFactors struct {
	PostalCode string `json:"postalCode,omitempty"`
	City       string `json:"city,omitempty"`
	StreetName string `json:"streetName,omitempty"`
}

// Empty reports whether no factor was supplied at all.
func (f AddressFactors) Empty() bool {
	return f.PostalCode == "" && f.City == "" && f.StreetName == ""
}

// factorCheck is one row of the ordered factor table: the reported name,
// the value the caller supplied, and how it compares against the address
// on file.
type factorCheck struct {
	name    string
	present string
	match   func(present string, addr Address) bool
}

// matchFactors evaluates the factor table left to right and stops at the
// first supplied value: that factor alone decides the outcome, so a wrong
// postal code is never rescued by a correct city in the same request.
// Returns the name of the factor that was evaluated.
func matchFactors(f AddressFactors, addr Address) (string, bool) {
	table := []factorCheck{
		{"postalCode", f.PostalCode, matchPostalCode},
		{"city", f.City, matchCity},
		{"streetName", f.StreetName, matchStreet},
	}
	for _, fc := range table {
		if fc.present == "" {
			continue
		}
		return fc.name, fc.match(fc.present, addr)
	}
	return "", false
}

func matchPostalCode(present string, addr Address) bool {
	return strings.TrimSpace(present) == strings.TrimSpace(addr.PostalCode)
}

func matchCity(present string, addr Address) bool {
	return strings.EqualFold(strings.TrimSpace(present), strings.TrimSpace(addr.City))
}

func matchStreet(present string, addr Address) bool {
	needle := strings.ToLower(strings.TrimSpace(present))
	if needle == "" {
		return false
	}
	for _, line := range addr.Lines {
		if strings.Contains(strings.ToLower(line), needle) {
			return true
		}
	}
	return false
}
