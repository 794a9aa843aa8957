package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/lhhong/yolink2mqtt/yolink"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostGetTriggers(t *testing.T) {
	host, _, _ := newTestHost(t, DeviceConfig{Devices: []Device{remoteDevice()}})

	device, ok := host.Registry.ByConnection(testMac)
	require.True(t, ok)

	expected := make([]yolink.TriggerDescriptor, 0)
	for _, triggerType := range []string{
		"button_1_short_press", "button_1_long_press",
		"button_2_short_press", "button_2_long_press",
		"button_3_short_press", "button_3_long_press",
		"button_4_short_press", "button_4_long_press",
	} {
		expected = append(expected, yolink.TriggerDescriptor{
			Platform: "device",
			Domain:   yolink.Domain,
			Type:     triggerType,
			DeviceID: device.Id,
			Metadata: map[string]any{},
		})
	}

	triggers, ok := host.ListTriggers(device.Id)
	require.True(t, ok)
	assert.ElementsMatch(t, expected, triggers)
}

func TestHostGetTriggersNotARemote(t *testing.T) {
	host, _, _ := newTestHost(t, DeviceConfig{Devices: []Device{dimmerDevice()}})

	triggers, ok := host.ListTriggers("dimmer1")
	require.True(t, ok)
	assert.Empty(t, triggers)

	_, ok = host.ListTriggers("missing")
	assert.False(t, ok)
}

func TestHostFiresOnEvent(t *testing.T) {
	host, recorder, _ := newTestHost(t, DeviceConfig{
		Devices:     []Device{remoteDevice()},
		Automations: []Automation{serviceCalledAutomation("remote1", "button_1_long_press")},
	})

	device, ok := host.Registry.ByConnection(testMac)
	require.True(t, ok)

	host.FireEvent(context.Background(), yolink.Event{Type: "button_1_long_press", DeviceID: device.Id})

	calls := recorder.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "yolink.automation", calls[0].Service)
	assert.Equal(t, "service called", calls[0].Data["message"])

	events, fired := host.EventCount()
	assert.EqualValues(t, 1, events)
	assert.EqualValues(t, 1, fired)
}

func TestHostIgnoresUnmatchedEvents(t *testing.T) {
	host, recorder, _ := newTestHost(t, DeviceConfig{
		Devices:     []Device{remoteDevice(), dimmerDevice()},
		Automations: []Automation{serviceCalledAutomation("remote1", "button_1_long_press")},
	})

	host.FireEvent(context.Background(), yolink.Event{Type: "button_1_short_press", DeviceID: "remote1"})
	host.FireEvent(context.Background(), yolink.Event{Type: "button_1_long_press", DeviceID: "dimmer1"})
	host.Bus.Fire(context.Background(), yolink.EventType, map[string]string{"type": "button_1_long_press"})

	assert.Empty(t, recorder.Calls())
	events, fired := host.EventCount()
	assert.EqualValues(t, 2, events)
	assert.Zero(t, fired)
}

func TestHostApplyReplacesAutomations(t *testing.T) {
	conf := DeviceConfig{
		Devices:     []Device{remoteDevice()},
		Automations: []Automation{serviceCalledAutomation("remote1", "button_1_long_press")},
	}
	host, recorder, _ := newTestHost(t, conf)
	host.Apply(conf)
	assert.Equal(t, 1, host.Bridge.Len())

	host.FireEvent(context.Background(), yolink.Event{Type: "button_1_long_press", DeviceID: "remote1"})
	assert.Len(t, recorder.Calls(), 1)

	host.Apply(DeviceConfig{Devices: []Device{remoteDevice()}})
	assert.Zero(t, host.Bridge.Len())
	host.FireEvent(context.Background(), yolink.Event{Type: "button_1_long_press", DeviceID: "remote1"})
	assert.Len(t, recorder.Calls(), 1)
}

func TestHostSkipsInvalidAutomations(t *testing.T) {
	wrongDomain := serviceCalledAutomation("remote1", "button_1_long_press")
	wrongDomain.Trigger.Domain = "hue"
	unknownDevice := serviceCalledAutomation("nope", "button_1_long_press")
	badService := serviceCalledAutomation("remote1", "button_2_long_press")
	badService.Action.Service = "automation"

	host, _, hook := newTestHost(t, DeviceConfig{
		Devices:     []Device{remoteDevice()},
		Automations: []Automation{wrongDomain, unknownDevice, badService},
	})

	assert.Zero(t, host.Bridge.Len())
	errorsLogged := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorsLogged++
		}
	}
	assert.Equal(t, 3, errorsLogged)
}

func TestHostKeepsStaleAutomation(t *testing.T) {
	remote := remoteDevice()
	remote.Model = "Dimmer"
	host, recorder, hook := newTestHost(t, DeviceConfig{
		Devices:     []Device{remote},
		Automations: []Automation{serviceCalledAutomation("remote1", "button_1_long_press")},
	})

	assert.Equal(t, 1, host.Bridge.Len())
	warned := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)

	host.FireEvent(context.Background(), yolink.Event{Type: "button_1_long_press", DeviceID: "remote1"})
	assert.Len(t, recorder.Calls(), 1)
}

type failingExecutor struct{}

func (failingExecutor) Call(context.Context, ServiceCall) error {
	return errors.New("broker down")
}

func TestHostActionFailureIsLogged(t *testing.T) {
	recorder := NewServiceRecorder(failingExecutor{}, 0)
	host, _, hook := newTestHost(t, DeviceConfig{})
	host.executor = recorder
	host.Apply(DeviceConfig{
		Devices:     []Device{remoteDevice()},
		Automations: []Automation{serviceCalledAutomation("remote1", "button_1_long_press")},
	})

	host.FireEvent(context.Background(), yolink.Event{Type: "button_1_long_press", DeviceID: "remote1"})

	assert.Len(t, recorder.Calls(), 1)
	failed := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Message == "Trigger action failed" {
			failed = true
		}
	}
	assert.True(t, failed)
}

func TestHostConcurrentApplyStaysConsistent(t *testing.T) {
	withAutomation := DeviceConfig{
		Devices:     []Device{remoteDevice()},
		Automations: []Automation{serviceCalledAutomation("remote1", "button_1_long_press")},
	}
	renamed := remoteDevice()
	renamed.Name = "Renamed remote"
	withoutAutomation := DeviceConfig{Devices: []Device{renamed}}

	host, _, _ := newTestHost(t, DeviceConfig{})
	for i := 0; i < 50; i++ {
		var wg sync.WaitGroup
		for _, conf := range []DeviceConfig{withAutomation, withoutAutomation} {
			wg.Add(1)
			go func(conf DeviceConfig) {
				defer wg.Done()
				host.Apply(conf)
			}(conf)
		}
		wg.Wait()

		device, ok := host.Registry.Get("remote1")
		require.True(t, ok)
		if device.Name == "Renamed remote" {
			require.Zero(t, host.Bridge.Len())
		} else {
			require.Equal(t, 1, host.Bridge.Len())
		}
	}
}
