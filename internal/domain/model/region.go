package model

import (
	"fmt"
	"strings"
)

// Region selects which family of share hosts an account is expected to live on.
type Region string

const (
	RegionUS  Region = "US"
	RegionOUS Region = "OUS" // Outside the United States.
)

// ParseRegion accepts "US" or "OUS" in any case. An empty string means US.
func ParseRegion(s string) (Region, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "US":
		return RegionUS, nil
	case "OUS":
		return RegionOUS, nil
	default:
		return "", fmt.Errorf("unknown region %q: expected US or OUS", s)
	}
}
