package yolink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDevice struct {
	id    string
	model string
}

func (d testDevice) DeviceID() string    { return d.id }
func (d testDevice) DeviceModel() string { return d.model }

func TestListTriggersSmartRemoter(t *testing.T) {
	device := testDevice{id: "abc123", model: "SmartRemoter"}

	expected := make([]TriggerDescriptor, 0, 8)
	for _, button := range []string{"1", "2", "3", "4"} {
		for _, press := range []string{ShortPress, LongPress} {
			expected = append(expected, TriggerDescriptor{
				Platform: "device",
				Domain:   "yolink",
				Type:     "button_" + button + "_" + press,
				DeviceID: "abc123",
				Metadata: map[string]any{},
			})
		}
	}

	triggers := ListTriggers(device)
	assert.Len(t, triggers, 8)
	assert.ElementsMatch(t, expected, triggers)
}

func TestListTriggersWithoutTriggers(t *testing.T) {
	for _, model := range []string{"Dimmer", "THSensor", "NotAModel", ""} {
		t.Run(model, func(t *testing.T) {
			triggers := ListTriggers(testDevice{id: "abc123", model: model})
			require.NotNil(t, triggers)
			assert.Empty(t, triggers)
		})
	}
}

func TestListTriggersIsIdempotent(t *testing.T) {
	device := testDevice{id: "abc123", model: "SmartRemoter"}
	assert.ElementsMatch(t, ListTriggers(device), ListTriggers(device))
}

func TestTriggerTypesReturnsCopy(t *testing.T) {
	types, ok := TriggerTypes(ModelSmartRemoter)
	require.True(t, ok)
	types[0] = "changed"

	again, _ := TriggerTypes(ModelSmartRemoter)
	assert.Equal(t, "button_1_short_press", again[0])

	_, ok = TriggerTypes(ModelDimmer)
	assert.False(t, ok)
}

func TestTriggerTypesAreUniquePerModel(t *testing.T) {
	for model, types := range triggerTypes {
		seen := map[string]bool{}
		for _, tp := range types {
			assert.False(t, seen[tp], "duplicate %s for %s", tp, model)
			seen[tp] = true
		}
	}
}

func TestParseModel(t *testing.T) {
	m, ok := ParseModel("SmartRemoter")
	assert.True(t, ok)
	assert.Equal(t, ModelSmartRemoter, m)
	assert.Equal(t, "SmartRemoter", m.String())

	_, ok = ParseModel("smartremoter")
	assert.False(t, ok)
	assert.Equal(t, "Unknown", ModelUnknown.String())
}
