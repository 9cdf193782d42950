package share

import "github.com/ericfisherdev/diasync/internal/domain/model"

// Known share hosts.
const (
	HostUS2 = "share2.dexcom.com"
	HostUS1 = "share1.dexcom.com"
	HostOUS = "shareous1.dexcom.com"
)

// Application ids accepted by the share service. Accounts are tied to the
// app they were created with, so a credential valid for one id returns the
// zero session for the other.
const (
	AppIDG6G7 = "d89443d2-327c-4a6f-89e5-496bbb0317db"
	AppIDOne  = "d8665bf2-6648-436f-b4cb-0da765e64887"
)

// DefaultCandidates returns the built-in search space: every known host,
// application id and payload casing, host-major.
func DefaultCandidates() []model.EndpointCandidate {
	hosts := []struct {
		host   string
		region model.Region
	}{
		{HostUS2, model.RegionUS},
		{HostUS1, model.RegionUS},
		{HostOUS, model.RegionOUS},
	}
	appIDs := []string{AppIDG6G7, AppIDOne}
	shapes := []model.PayloadShape{model.PayloadCamelCase, model.PayloadPascalCase}

	candidates := make([]model.EndpointCandidate, 0, len(hosts)*len(appIDs)*len(shapes))
	for _, h := range hosts {
		for _, appID := range appIDs {
			for _, shape := range shapes {
				candidates = append(candidates, model.EndpointCandidate{
					Host:          h.host,
					ApplicationID: appID,
					Shape:         shape,
					Region:        h.region,
				})
			}
		}
	}
	return candidates
}
