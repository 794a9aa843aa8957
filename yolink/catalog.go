package yolink

// DeviceInfo is the part of a registry device the trigger catalog needs.
type DeviceInfo interface {
	DeviceID() string
	DeviceModel() string
}

// TriggerDescriptor describes one automation trigger a device offers.
type TriggerDescriptor struct {
	Platform string         `json:"platform"`
	Domain   string         `json:"domain"`
	Type     string         `json:"type"`
	DeviceID string         `json:"device_id"`
	Metadata map[string]any `json:"metadata"`
}

var remoteTriggerTypes = []string{
	"button_1_short_press",
	"button_1_long_press",
	"button_2_short_press",
	"button_2_long_press",
	"button_3_short_press",
	"button_3_long_press",
	"button_4_short_press",
	"button_4_long_press",
}

var triggerTypes = map[Model][]string{
	ModelSmartRemoter: remoteTriggerTypes,
}

// TriggerTypes returns the trigger vocabulary of a model, false when the
// model offers no triggers.
func TriggerTypes(model Model) ([]string, bool) {
	types, ok := triggerTypes[model]
	if !ok {
		return nil, false
	}
	out := make([]string, len(types))
	copy(out, types)
	return out, true
}

// ListTriggers builds one descriptor per trigger type the device model offers.
// Devices with an unknown or trigger-less model get an empty list.
func ListTriggers(device DeviceInfo) []TriggerDescriptor {
	triggers := make([]TriggerDescriptor, 0)

	model, ok := ParseModel(device.DeviceModel())
	if !ok {
		return triggers
	}
	types, ok := TriggerTypes(model)
	if !ok {
		return triggers
	}

	for _, t := range types {
		triggers = append(triggers, TriggerDescriptor{
			Platform: PlatformDevice,
			Domain:   Domain,
			Type:     t,
			DeviceID: device.DeviceID(),
			Metadata: map[string]any{},
		})
	}
	return triggers
}

func offersType(device DeviceInfo, triggerType string) bool {
	for _, t := range ListTriggers(device) {
		if t.Type == triggerType {
			return true
		}
	}
	return false
}
