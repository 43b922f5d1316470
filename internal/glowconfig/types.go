package glowconfig

// Directive keys written to GlowConfig.h.
const (
	KeyLEDData = "LED_DATA_PIN"
	KeyButton  = "BUTTON_PIN"
	KeySDA     = "DISTANCE_SENSOR_SDA"
	KeySCL     = "DISTANCE_SENSOR_SCL"

	KeyMeshOn       = "MESH_ON"
	KeyMeshPrefix   = "MESH_PREFIX"
	KeyMeshPassword = "MESH_PASSWORD"
)

// DefaultMeshName is offered when no mesh name is configured yet.
const DefaultMeshName = "GlowMesh"

// PinKeys lists the pin directives in the order they are prompted and patched.
var PinKeys = []string{KeyLEDData, KeyButton, KeySDA, KeySCL}

// MeshKeys lists the mesh directives in patch order.
var MeshKeys = []string{KeyMeshOn, KeyMeshPrefix, KeyMeshPassword}

// RequiredKeys returns every key a template must define.
func RequiredKeys() []string {
	keys := make([]string, 0, len(PinKeys)+len(MeshKeys))
	keys = append(keys, PinKeys...)
	return append(keys, MeshKeys...)
}

// PinAssignment maps the firmware's logical pins to GPIO numbers.
type PinAssignment struct {
	LEDData int
	Button  int
	SDA     int
	SCL     int
}

// DefaultPins returns the wiring of the reference board.
func DefaultPins() PinAssignment {
	return PinAssignment{LEDData: 3, Button: 4, SDA: 6, SCL: 7}
}

// Pin is one named entry of a PinAssignment.
type Pin struct {
	Name  string
	Value int
}

// Map returns the assignment as ordered name/value pairs.
func (a PinAssignment) Map() []Pin {
	return []Pin{
		{Name: KeyLEDData, Value: a.LEDData},
		{Name: KeyButton, Value: a.Button},
		{Name: KeySDA, Value: a.SDA},
		{Name: KeySCL, Value: a.SCL},
	}
}

// Set assigns value to the pin called name. Unknown names are ignored.
func (a *PinAssignment) Set(name string, value int) {
	switch name {
	case KeyLEDData:
		a.LEDData = value
	case KeyButton:
		a.Button = value
	case KeySDA:
		a.SDA = value
	case KeySCL:
		a.SCL = value
	}
}

// Label returns a human readable name for a pin key.
func Label(key string) string {
	switch key {
	case KeyLEDData:
		return "LED Data Pin"
	case KeyButton:
		return "Button Pin"
	case KeySDA:
		return "Distance Sensor SDA"
	case KeySCL:
		return "Distance Sensor SCL"
	}
	return key
}

// MeshSettings configures the painlessMesh network shared by several lights.
type MeshSettings struct {
	Enabled  bool
	Name     string
	Password string
}

// patches returns the directives written for m. A disabled mesh only flips MESH_ON.
func (m MeshSettings) patches() []patch {
	if !m.Enabled {
		return []patch{{KeyMeshOn, false}}
	}
	return []patch{
		{KeyMeshOn, true},
		{KeyMeshPrefix, Quoted(m.Name)},
		{KeyMeshPassword, Quoted(m.Password)},
	}
}

type patch struct {
	key   string
	value any
}
