package oceancolor

import (
	"fmt"
	"sort"
	"strings"
)

// Defaults for Level-3 mapped Aqua MODIS products.
const (
	DefaultPlatform   = "AQUA_MODIS"
	DefaultResolution = "4km"
)

// Composite is the temporal binning of a Level-3 product.
type Composite string

const (
	Daily    Composite = "DAY"
	EightDay Composite = "8D"
)

// ParseComposite accepts "8D", "8day", "DAY" or "daily".
func ParseComposite(s string) (Composite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "8d", "8day", "8-day":
		return EightDay, nil
	case "day", "daily":
		return Daily, nil
	default:
		return "", fmt.Errorf("unknown composite %q, must be one of: 8D, DAY", s)
	}
}

// Product identifies a Level-3 mapped variable.
type Product struct {
	Suite    string
	Variable string
}

// Products maps the short names used in source configuration to products.
var Products = map[string]Product{
	"sst":     {Suite: "SST", Variable: "sst"},
	"sst4":    {Suite: "SST4", Variable: "sst4"},
	"nsst":    {Suite: "NSST", Variable: "sst"},
	"chlor_a": {Suite: "CHL", Variable: "chlor_a"},
	"kd_490":  {Suite: "KD", Variable: "Kd_490"},
	"pic":     {Suite: "PIC", Variable: "pic"},
	"poc":     {Suite: "POC", Variable: "poc"},
}

// LookupProduct returns the product registered under name.
func LookupProduct(name string) (Product, error) {
	p, ok := Products[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(Products))
		for k := range Products {
			names = append(names, k)
		}
		sort.Strings(names)
		return Product{}, fmt.Errorf("unknown product %q, must be one of: %s", name, strings.Join(names, ", "))
	}
	return p, nil
}

// FileName builds the OceanColor file name of product p for a period, e.g.
// AQUA_MODIS.20210301_20210308.L3m.8D.SST.sst.4km.nc.
func FileName(platform string, c Composite, p Product, period Period, resolution string) string {
	dates := period.Start.Format("20060102")
	if c != Daily {
		dates += "_" + period.End.Format("20060102")
	}
	return fmt.Sprintf("%s.%s.L3m.%s.%s.%s.%s.nc", platform, dates, c, p.Suite, p.Variable, resolution)
}
