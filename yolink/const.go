package yolink

const (
	Domain         = "yolink"
	EventType      = "yolink_event"
	PlatformDevice = "device"
)

const (
	ShortPress = "short_press"
	LongPress  = "long_press"
)

// Model is a yolink device type tag as reported by the cloud api.
type Model int

const (
	ModelUnknown Model = iota
	ModelSmartRemoter
	ModelDimmer
	ModelSwitch
	ModelOutlet
	ModelMultiOutlet
	ModelDoorSensor
	ModelLeakSensor
	ModelMotionSensor
	ModelTHSensor
	ModelVibrationSensor
	ModelSiren
	ModelLock
	ModelGarageDoor
	ModelThermostat
	ModelManipulator
	ModelCoSmokeSensor
	ModelPowerFailureAlarm
)

var modelNames = map[Model]string{
	ModelSmartRemoter:      "SmartRemoter",
	ModelDimmer:            "Dimmer",
	ModelSwitch:            "Switch",
	ModelOutlet:            "Outlet",
	ModelMultiOutlet:       "MultiOutlet",
	ModelDoorSensor:        "DoorSensor",
	ModelLeakSensor:        "LeakSensor",
	ModelMotionSensor:      "MotionSensor",
	ModelTHSensor:          "THSensor",
	ModelVibrationSensor:   "VibrationSensor",
	ModelSiren:             "Siren",
	ModelLock:              "Lock",
	ModelGarageDoor:        "GarageDoor",
	ModelThermostat:        "Thermostat",
	ModelManipulator:       "Manipulator",
	ModelCoSmokeSensor:     "COSmokeSensor",
	ModelPowerFailureAlarm: "PowerFailureAlarm",
}

var modelsByName = func() map[string]Model {
	m := make(map[string]Model, len(modelNames))
	for model, name := range modelNames {
		m[name] = model
	}
	return m
}()

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return "Unknown"
}

// ParseModel returns false for tags outside the known catalog.
func ParseModel(tag string) (Model, bool) {
	m, ok := modelsByName[tag]
	return m, ok
}
