// Package filter describes one logical query against the county-owned
// property portal.
package filter

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query field names understood by the portal.
const (
	FieldFolio          = "FolioF"
	FieldPropertyType   = "PrpTypeF"
	FieldDistrict       = "DistrictF"
	FieldLotCombination = "LotComF"
	FieldLot            = "LotF"
	FieldLocation       = "LocationF"
	FieldAddress        = "AddressF"
	FieldZone           = "ZoneF"
	FieldLegal          = "LegalF"
	FieldSurplus        = "SurplusF"

	// FieldPageIndex is the only field that changes between requests of a run.
	FieldPageIndex = "pageIndex"
)

// Fields lists the filter fields in the order the portal form declares them.
var Fields = []string{
	FieldFolio,
	FieldPropertyType,
	FieldDistrict,
	FieldLotCombination,
	FieldLot,
	FieldLocation,
	FieldAddress,
	FieldZone,
	FieldLegal,
	FieldSurplus,
}

// FilterSet is an immutable set of filter values. An empty value means
// "unfiltered". The page index is not part of the set; it is supplied to
// Query for every request.
type FilterSet struct {
	Folio          string `yaml:"folio,omitempty" json:"folio,omitempty"`
	PropertyType   string `yaml:"property_type,omitempty" json:"property_type,omitempty"`
	District       string `yaml:"district,omitempty" json:"district,omitempty"`
	LotCombination string `yaml:"lot_combination,omitempty" json:"lot_combination,omitempty"`
	Lot            string `yaml:"lot,omitempty" json:"lot,omitempty"`
	Location       string `yaml:"location,omitempty" json:"location,omitempty"`
	Address        string `yaml:"address,omitempty" json:"address,omitempty"`
	Zone           string `yaml:"zone,omitempty" json:"zone,omitempty"`
	Legal          string `yaml:"legal,omitempty" json:"legal,omitempty"`
	Surplus        string `yaml:"surplus,omitempty" json:"surplus,omitempty"`
}

// values maps query field names to the set's values, in Fields order.
func (f FilterSet) values() []string {
	return []string{
		f.Folio,
		f.PropertyType,
		f.District,
		f.LotCombination,
		f.Lot,
		f.Location,
		f.Address,
		f.Zone,
		f.Legal,
		f.Surplus,
	}
}

// Query returns the full query for the given page. Every filter field is
// present, unfiltered ones with an empty value, as the portal's own form
// submits them.
func (f FilterSet) Query(page int) url.Values {
	q := make(url.Values, len(Fields)+1)
	for i, v := range f.values() {
		q.Set(Fields[i], v)
	}
	q.Set(FieldPageIndex, strconv.Itoa(page))
	return q
}

// Params is Query flattened to single values, used for run metadata.
func (f FilterSet) Params(page int) map[string]string {
	q := f.Query(page)
	params := make(map[string]string, len(q))
	for k := range q {
		params[k] = q.Get(k)
	}
	return params
}

// IsZero reports whether no field is filtered.
func (f FilterSet) IsZero() bool {
	return f == FilterSet{}
}

// String renders the filtered fields as "Field=value" pairs, sorted by name.
func (f FilterSet) String() string {
	var parts []string
	for i, v := range f.values() {
		if v != "" {
			parts = append(parts, Fields[i]+"="+v)
		}
	}
	if len(parts) == 0 {
		return "unfiltered"
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
