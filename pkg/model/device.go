package model

// DeviceStatus is the availability of a device as reported by the controller.
type DeviceStatus string

const (
	// StatusAvailable indicates the device is reachable.
	StatusAvailable DeviceStatus = "AVAILABLE"

	// StatusUnavailable indicates the device is not reachable.
	StatusUnavailable DeviceStatus = "UNAVAILABLE"

	// StatusUndefined covers any status string this gateway does not know.
	// Unknown values never fail the device snapshot fetch.
	StatusUndefined DeviceStatus = "UNDEFINED"
)

// Normalize maps unknown status strings to StatusUndefined.
func (s DeviceStatus) Normalize() DeviceStatus {
	switch s {
	case StatusAvailable, StatusUnavailable:
		return s
	default:
		return StatusUndefined
	}
}

// Room is one room snapshot entry.
//
// Wire example:
//
//	{"@type":"room","id":"hz_1","iconId":"icon_room_bedroom","name":"Bedroom"}
type Room struct {
	Type   string `json:"@type,omitempty"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	IconID string `json:"iconId,omitempty"`
}

// Device is one device snapshot entry.
//
// Wire example (abridged):
//
//	{
//	  "@type":"device",
//	  "rootDeviceId":"64-da-a0-02-14-9b",
//	  "id":"hdm:HomeMaticIP:3014F711A0001916D859A8A9",
//	  "deviceServiceIds":["PowerSwitch","PowerMeter"],
//	  "manufacturer":"BOSCH",
//	  "roomId":"hz_3",
//	  "deviceModel":"PSM",
//	  "serial":"3014F711A0001916D859A8A9",
//	  "name":"Kitchen Plug",
//	  "status":"AVAILABLE",
//	  "childDeviceIds":[]
//	}
type Device struct {
	Type           string       `json:"@type,omitempty"`
	RootDeviceID   string       `json:"rootDeviceId,omitempty"`
	ID             string       `json:"id"`
	ServiceIDs     []string     `json:"deviceServiceIds,omitempty"`
	Manufacturer   string       `json:"manufacturer,omitempty"`
	RoomID         string       `json:"roomId,omitempty"`
	DeviceModel    string       `json:"deviceModel,omitempty"`
	Serial         string       `json:"serial,omitempty"`
	Name           string       `json:"name"`
	Status         DeviceStatus `json:"status,omitempty"`
	ChildDeviceIDs []string     `json:"childDeviceIds,omitempty"`
}

// HasService reports whether the device advertises the given service id.
func (d Device) HasService(name string) bool {
	for _, id := range d.ServiceIDs {
		if id == name {
			return true
		}
	}
	return false
}
