package address

import "strings"

// Provinces lists Cambodia's 24 provinces and the capital, Phnom Penh.
var Provinces = []string{
	"Banteay Meanchey",
	"Battambang",
	"Kampong Cham",
	"Kampong Chhnang",
	"Kampong Speu",
	"Kampong Thom",
	"Kampot",
	"Kandal",
	"Kep",
	"Koh Kong",
	"Kratie",
	"Mondulkiri",
	"Oddar Meanchey",
	"Pailin",
	"Phnom Penh",
	"Preah Sihanouk",
	"Preah Vihear",
	"Prey Veng",
	"Pursat",
	"Ratanakiri",
	"Siem Reap",
	"Stung Treng",
	"Svay Rieng",
	"Takeo",
	"Tbong Khmum",
}

var provinceIndex = func() map[string]string {
	idx := make(map[string]string, len(Provinces))
	for _, name := range Provinces {
		idx[provinceKey(name)] = name
	}
	return idx
}()

// CanonicalProvince matches name against the province list ignoring case
// and spacing, and returns the canonical spelling.
func CanonicalProvince(name string) (string, bool) {
	canonical, ok := provinceIndex[provinceKey(name)]
	return canonical, ok
}

func provinceKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}
