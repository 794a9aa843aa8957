package server

import (
	"strings"

	"github.com/lhhong/yolink2mqtt/yolink"
)

type DiscoveryMessage struct {
	AutomationType string                 `json:"automation_type"` // trigger
	Type           string                 `json:"type"`            // button_short_press
	SubType        string                 `json:"subtype"`         // button_1
	Topic          string                 `json:"topic"`
	Payload        string                 `json:"payload"`
	Device         DeviceDiscoveryMessage `json:"device"`
}

type DeviceDiscoveryMessage struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Model       string   `json:"model"`
	Via         string   `json:"via_device,omitempty"`
}

type discoveryEntry struct {
	topic   string
	message DiscoveryMessage
}

func actionTopic(rootTopic string, deviceId string) string {
	return rootTopic + "/" + deviceId + "/action"
}

// splitTriggerType turns button_1_long_press into button_long_press and button_1.
func splitTriggerType(triggerType string) (string, string) {
	parts := strings.SplitN(triggerType, "_", 3)
	if len(parts) < 3 {
		return triggerType, ""
	}
	return parts[0] + "_" + parts[2], parts[0] + "_" + parts[1]
}

func discoveryEntries(devConf DeviceConfig, envVars EnvVars) []discoveryEntry {
	entries := make([]discoveryEntry, 0)
	for _, device := range devConf.Devices {
		identifiers := append([]string{yolink.Domain + "_" + device.Id}, device.Identifiers...)
		deviceMessage := DeviceDiscoveryMessage{
			Identifiers: identifiers,
			Name:        device.Name,
			Model:       device.Model,
		}
		for _, trigger := range yolink.ListTriggers(device) {
			haType, subType := splitTriggerType(trigger.Type)
			entries = append(entries, discoveryEntry{
				topic: envVars.HaDiscoveryPrefix + "/device_automation/" + device.Id + "_" + trigger.Type + "/config",
				message: DiscoveryMessage{
					AutomationType: "trigger",
					Type:           haType,
					SubType:        subType,
					Topic:          actionTopic(envVars.RootTopic, device.Id),
					Payload:        trigger.Type,
					Device:         deviceMessage,
				},
			})
		}
	}
	return entries
}
