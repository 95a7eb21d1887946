package model

// PublicInformation is the unauthenticated document served on port 8446.
// Discovery uses ShcIPAddress to confirm a candidate really is a controller;
// the bridge uses MacAddress as the Gateway-ID header value.
//
// Wire example (abridged):
//
//	{
//	  "apiVersions":["1.2","2.1"],
//	  "macAddress":"64-da-a0-02-14-9b",
//	  "shcIpAddress":"192.168.1.2",
//	  "shcGeneration":"SHC_1"
//	}
type PublicInformation struct {
	APIVersions   []string `json:"apiVersions,omitempty"`
	MacAddress    string   `json:"macAddress,omitempty"`
	ShcIPAddress  string   `json:"shcIpAddress"`
	ShcGeneration string   `json:"shcGeneration,omitempty"`
}

// GatewayID returns the MAC-derived identifier carried in the Gateway-ID
// header. Falls back to fallback when the controller did not report one.
func (p PublicInformation) GatewayID(fallback string) string {
	if p.MacAddress != "" {
		return p.MacAddress
	}
	return fallback
}
