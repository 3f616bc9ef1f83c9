package registry

import "sort"

// UnknownRegion is the display label for records without a region, and for
// indicator buckets without a name.
const UnknownRegion = "Inconnu"

type Region struct {
	Name      string  `json:"nom"`
	Code      string  `json:"code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Default holds the 14 administrative regions of Senegal with their centroids.
var Default = []Region{
	{Name: "Dakar", Code: "DK", Latitude: 14.7167, Longitude: -17.4677},
	{Name: "Diourbel", Code: "DB", Latitude: 14.6500, Longitude: -16.2333},
	{Name: "Fatick", Code: "FK", Latitude: 14.3333, Longitude: -16.4167},
	{Name: "Kaffrine", Code: "KA", Latitude: 14.1067, Longitude: -15.5481},
	{Name: "Kaolack", Code: "KL", Latitude: 14.1500, Longitude: -16.0833},
	{Name: "Kédougou", Code: "KE", Latitude: 12.5569, Longitude: -12.1744},
	{Name: "Kolda", Code: "KD", Latitude: 12.8833, Longitude: -14.9500},
	{Name: "Louga", Code: "LG", Latitude: 15.6167, Longitude: -16.2167},
	{Name: "Matam", Code: "MT", Latitude: 15.6558, Longitude: -13.2558},
	{Name: "Saint-Louis", Code: "SL", Latitude: 16.0179, Longitude: -16.4897},
	{Name: "Sédhiou", Code: "SE", Latitude: 12.7081, Longitude: -15.5569},
	{Name: "Tambacounda", Code: "TC", Latitude: 13.7671, Longitude: -13.6677},
	{Name: "Thiès", Code: "TH", Latitude: 14.7886, Longitude: -16.9260},
	{Name: "Ziguinchor", Code: "ZG", Latitude: 12.5833, Longitude: -16.2667},
}

// Registry is a read-only, name-ordered set of regions.
type Registry struct {
	regions []Region
	byName  map[string]int
}

func New(regions []Region) *Registry {
	sorted := make([]Region, 0, len(regions))
	byName := make(map[string]int, len(regions))
	for _, r := range regions {
		if r.Name == "" {
			continue
		}
		if _, dup := byName[r.Name]; dup {
			continue
		}
		byName[r.Name] = len(sorted)
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for i, r := range sorted {
		byName[r.Name] = i
	}
	return &Registry{regions: sorted, byName: byName}
}

// List returns a copy of the regions ordered by name.
func (r *Registry) List() []Region {
	out := make([]Region, len(r.regions))
	copy(out, r.regions)
	return out
}

// Names returns region names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.regions))
	for i, reg := range r.regions {
		out[i] = reg.Name
	}
	return out
}

// Lookup is a case-sensitive exact match on the region name.
func (r *Registry) Lookup(name string) (Region, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Region{}, false
	}
	return r.regions[i], true
}

// DisplayName maps an empty region to UnknownRegion. Names missing from the
// registry are returned as-is so they still group in aggregates.
func DisplayName(name string) string {
	if name == "" {
		return UnknownRegion
	}
	return name
}
