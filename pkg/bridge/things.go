package bridge

// ThingType is the framework-side categorization of a device model.
type ThingType string

// Thing types the gateway can materialize.
const (
	ThingInWallSwitch   ThingType = "in-wall-switch"
	ThingSmartPlug      ThingType = "smart-plug"
	ThingShutterControl ThingType = "shutter-control"
	ThingTwinguard      ThingType = "twinguard"
	ThingClimateControl ThingType = "climate-control"
	ThingWallThermostat ThingType = "wall-thermostat"
	ThingThermostat     ThingType = "thermostat"
	ThingMotionDetector ThingType = "motion-detector"
	ThingWindowContact  ThingType = "window-contact"
)

// thingTypes maps controller device models to thing types. Models absent
// here are skipped during discovery with an informational log entry.
var thingTypes = map[string]ThingType{
	"PSM":                  ThingInWallSwitch,
	"PLUG_COMPACT":         ThingSmartPlug,
	"BBL":                  ThingShutterControl,
	"TWINGUARD":            ThingTwinguard,
	"ROOM_CLIMATE_CONTROL": ThingClimateControl,
	"BWTH":                 ThingWallThermostat,
	"TRV":                  ThingThermostat,
	"MD":                   ThingMotionDetector,
	"SWD":                  ThingWindowContact,
}

// ThingTypeFor returns the thing type for a device model.
func ThingTypeFor(deviceModel string) (ThingType, bool) {
	t, ok := thingTypes[deviceModel]
	return t, ok
}

// DiscoveredThing is one device reported by StartScan, with its room name
// resolved from the rooms snapshot.
type DiscoveredThing struct {
	Type     ThingType
	DeviceID string
	Name     string
	Model    string
	RoomName string
}
