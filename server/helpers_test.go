package server

import (
	"sync"
	"testing"

	"github.com/lhhong/yolink2mqtt/yolink"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const testMac = "12:34:56:AB:CD:EF"

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	retained bool
	payload  string
}

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	messages []published
}

func (p *fakePublisher) Publish(topic string, retained bool, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic: topic, retained: retained, payload: string(payload)})
	return nil
}

func (p *fakePublisher) published() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.messages...)
}

func remoteDevice() Device {
	return Device{
		Id:          "remote1",
		Name:        "Hall remote",
		Model:       "SmartRemoter",
		Identifiers: []string{"d88b4c0100000001"},
		Connections: []string{testMac},
	}
}

func dimmerDevice() Device {
	return Device{
		Id:          "dimmer1",
		Name:        "Bedroom dimmer",
		Model:       "Dimmer",
		Identifiers: []string{"d88b4c0200000002"},
	}
}

func serviceCalledAutomation(deviceId string, triggerType string) Automation {
	return Automation{
		Id:      "a1",
		Trigger: yolinkTrigger(deviceId, triggerType),
		Action: ServiceCall{
			Service: "yolink.automation",
			Data:    map[string]any{"message": "service called"},
		},
	}
}

func yolinkTrigger(deviceId string, triggerType string) yolink.TriggerConfig {
	return yolink.TriggerConfig{
		Platform: yolink.PlatformDevice,
		Domain:   yolink.Domain,
		DeviceID: deviceId,
		Type:     triggerType,
	}
}

func newTestHost(t *testing.T, conf DeviceConfig) (*Host, *ServiceRecorder, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	recorder := NewServiceRecorder(nil, 0)
	host := NewHost(recorder, logger)
	host.Apply(conf)
	require.NotNil(t, host)
	return host, recorder, hook
}

func newTestConfig(t *testing.T) *ConfigState {
	t.Helper()
	envVars := EnvVars{
		HaDiscoveryPrefix: "homeassistant",
		ConfigDir:         t.TempDir(),
		RootTopic:         "yolink2mqtt",
	}
	config, err := initConfigAt(envVars, nil)
	require.NoError(t, err)
	return config
}
