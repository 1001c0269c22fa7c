// Package countries resolves raw two-letter codes against the ISO 3166
// reference table.
package countries

import (
	iso "github.com/biter777/countries"

	"github.com/pscheid92/livevote/internal/domain"
)

// Resolver implements domain.CountryResolver on the static ISO table.
type Resolver struct{}

func NewResolver() Resolver {
	return Resolver{}
}

// Resolve maps a two-letter code to its ISO country. Unknown codes report
// false; there is no fuzzy matching beyond the alpha-2 lookup.
func (Resolver) Resolve(code string) (domain.Country, bool) {
	cc := iso.ByName(code)
	if !cc.IsValid() {
		return domain.Country{}, false
	}
	return domain.Country{
		Alpha2: cc.Alpha2(),
		Alpha3: cc.Alpha3(),
		Name:   cc.String(),
	}, true
}
