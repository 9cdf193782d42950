package model

import "fmt"

// PayloadShape is the key casing the share service expects in a login body.
type PayloadShape string

const (
	PayloadCamelCase  PayloadShape = "camelCase"  // accountName, password, applicationId
	PayloadPascalCase PayloadShape = "PascalCase" // AccountName, Password, ApplicationId
)

// EndpointCandidate is one (host, application id, payload casing) combination
// tried during endpoint discovery.
type EndpointCandidate struct {
	Host          string       `yaml:"host"`
	ApplicationID string       `yaml:"application_id"`
	Shape         PayloadShape `yaml:"shape"`
	Region        Region       `yaml:"region"`
}

// String identifies the candidate for logs. Only a prefix of the application
// id is shown.
func (c EndpointCandidate) String() string {
	appID := c.ApplicationID
	if len(appID) > 8 {
		appID = appID[:8]
	}
	return fmt.Sprintf("%s/%s/%s", c.Host, appID, c.Shape)
}

// Validate reports whether the candidate is usable.
func (c EndpointCandidate) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("endpoint candidate: host is required")
	}
	if c.ApplicationID == "" {
		return fmt.Errorf("endpoint candidate %s: application id is required", c.Host)
	}
	switch c.Shape {
	case PayloadCamelCase, PayloadPascalCase:
	default:
		return fmt.Errorf("endpoint candidate %s: unknown payload shape %q", c.Host, c.Shape)
	}
	switch c.Region {
	case RegionUS, RegionOUS:
	default:
		return fmt.Errorf("endpoint candidate %s: unknown region %q", c.Host, c.Region)
	}
	return nil
}
