package server

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/lhhong/yolink2mqtt/yolink"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
)

const publishTimeout = 1 * time.Second

type mqttPublisher struct {
	client mqtt.Client
}

func NewMqttPublisher(client mqtt.Client) Publisher {
	return mqttPublisher{client: client}
}

func (p mqttPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("timed out publishing to " + topic)
	}
	return token.Error()
}

func InitMqtt(config *ConfigState, host *Host, pairing *PairingState) (mqtt.Client, error) {
	envVars := config.EnvVars

	opts := mqtt.NewClientOptions()
	opts.AddBroker(envVars.MqttBroker)
	opts.SetClientID(envVars.RootTopic + "-" + shortid.MustGenerate())
	opts.SetOrderMatters(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		subscribe(client, envVars.ReportTopic, reportHandler(host, pairing))
		subscribe(client, envVars.RootTopic+"/events", eventHandler(host))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logrus.WithError(err).Warn("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		if token.Error() != nil {
			return nil, errors.Wrap(token.Error(), "failed to connect to "+envVars.MqttBroker)
		}
		return nil, errors.New("timed out connecting to " + envVars.MqttBroker)
	}
	logrus.WithField("broker", envVars.MqttBroker).Info("Connected to MQTT")
	return client, nil
}

func subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) {
	if token := client.Subscribe(topic, 1, handler); !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		logrus.WithError(token.Error()).WithField("topic", topic).Error("Failed to subscribe")
	} else {
		logrus.WithField("topic", topic).Info("Subscribed")
	}
}

// reportHandler turns yolink cloud reports into yolink events on the host bus.
// Presses from unregistered remotes are offered to a running pairing.
func reportHandler(host *Host, pairing *PairingState) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		vendorId, triggerType, ok, err := yolink.DecodeReport(msg.Payload())
		if err != nil {
			logrus.WithError(err).WithField("topic", msg.Topic()).Warn("Failed to read yolink report")
			return
		}
		if !ok {
			return
		}

		device, found := host.Registry.ByIdentifier(vendorId)
		if !found {
			if pairing != nil && pairing.offer(pairingReport{VendorId: vendorId, Model: yolink.ModelSmartRemoter.String()}) {
				return
			}
			logrus.WithField("vendor_id", vendorId).Info("Received press from unknown device")
			return
		}

		host.FireEvent(context.Background(), yolink.Event{Type: triggerType, DeviceID: device.Id})
	}
}

// eventHandler accepts events that already carry a registry device id.
func eventHandler(host *Host) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var event yolink.Event
		if err := json.Unmarshal(msg.Payload(), &event); err != nil {
			logrus.WithError(err).WithField("payload", string(msg.Payload())).Warn("Failed to read event message")
			return
		}
		host.FireEvent(context.Background(), event)
	}
}

// ForwardTriggers republishes every yolink event on the device action topic
// that discovery announced to Home Assistant.
func ForwardTriggers(host *Host, rootTopic string, publisher Publisher) func() {
	return host.Bus.Listen(yolink.EventType, func(_ context.Context, data any) {
		event, ok := data.(yolink.Event)
		if !ok {
			return
		}
		if _, registered := host.Registry.Get(event.DeviceID); !registered {
			return
		}
		if err := publisher.Publish(actionTopic(rootTopic, event.DeviceID), false, []byte(event.Type)); err != nil {
			logrus.WithError(err).WithField("device", event.DeviceID).Error("Error publishing trigger activation")
		}
	})
}

func PublishAllDiscovery(devConf DeviceConfig, envVars EnvVars, publisher Publisher) {
	for _, entry := range discoveryEntries(devConf, envVars) {
		payload, err := json.Marshal(entry.message)
		if err != nil {
			logrus.WithError(err).Error("Failed to serialize discovery")
			continue
		}
		if err := publisher.Publish(entry.topic, true, payload); err != nil {
			logrus.WithError(err).WithField("topic", entry.topic).Error("Failed to publish trigger discovery")
		}
	}
}
