package server

import (
	"fmt"
	"os"
	"sync"

	"github.com/lhhong/yolink2mqtt/yolink"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"gopkg.in/yaml.v2"
)

// Device is a registry entry loaded from devices.yml.
type Device struct {
	Id          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Model       string   `yaml:"model" json:"model"`
	Identifiers []string `yaml:"identifiers,omitempty" json:"identifiers"`
	Connections []string `yaml:"connections,omitempty" json:"connections"`
}

func (d Device) DeviceID() string    { return d.Id }
func (d Device) DeviceModel() string { return d.Model }

// ServiceCall names a domain.name service and the data passed to it.
type ServiceCall struct {
	Service string         `yaml:"service" json:"service"`
	Data    map[string]any `yaml:"data,omitempty" json:"data,omitempty"`
}

// Automation runs Action when Trigger fires.
type Automation struct {
	Id      string               `yaml:"id" json:"id"`
	Alias   string               `yaml:"alias,omitempty" json:"alias,omitempty"`
	Trigger yolink.TriggerConfig `yaml:"trigger" json:"trigger"`
	Action  ServiceCall          `yaml:"action" json:"action"`
}

// DeviceConfig is the content of devices.yml.
type DeviceConfig struct {
	Devices     []Device     `yaml:"devices"`
	Automations []Automation `yaml:"automations,omitempty"`
}

// EnvVars is the environment configuration, see getEnvVars.
type EnvVars struct {
	HaDiscoveryPrefix string `default:"homeassistant" validate:"required"`
	ConfigDir         string `default:"./config-dev" validate:"required"`
	MqttBroker        string `default:"mqtt://127.0.0.1:1883" validate:"required"`
	ReportTopic       string `default:"yl-home/+/+/report" validate:"required"`
	RootTopic         string `default:"yolink2mqtt" validate:"required"`
	ListenAddr        string `default:":8943" validate:"required"`
	LogLevel          string `default:"info" validate:"oneof=trace debug info warn warning error"`
}

// ConfigState holds the loaded devices.yml and notifies subscribers whenever
// it is reloaded.
type ConfigState struct {
	EnvVars    EnvVars
	configFile string

	mu        sync.RWMutex
	devConf   DeviceConfig
	onReload  []func(DeviceConfig)
	writeLock sync.Mutex
}

const deviceConfigFileName string = "devices.yml"

// DevConf returns a copy of the current device config.
func (c *ConfigState) DevConf() DeviceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.devConf.clone()
}

// OnReload registers fn to run on every reload. fn also runs immediately with
// the current config.
func (c *ConfigState) OnReload(fn func(DeviceConfig)) {
	c.mu.Lock()
	c.onReload = append(c.onReload, fn)
	current := c.devConf.clone()
	c.mu.Unlock()
	fn(current)
}

func (c *ConfigState) setDevConf(conf DeviceConfig) {
	c.mu.Lock()
	c.devConf = conf
	listeners := make([]func(DeviceConfig), len(c.onReload))
	copy(listeners, c.onReload)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(conf.clone())
	}
}

// Reload reads devices.yml from disk.
func (c *ConfigState) Reload() error {
	loaded, err := loadExistingConfig(c.configFile)
	if err != nil {
		return err
	}
	c.setDevConf(*loaded)
	return nil
}

func (d DeviceConfig) clone() DeviceConfig {
	out := DeviceConfig{
		Devices:     make([]Device, len(d.Devices)),
		Automations: make([]Automation, len(d.Automations)),
	}
	for i, device := range d.Devices {
		device.Identifiers = append([]string(nil), device.Identifiers...)
		device.Connections = append([]string(nil), device.Connections...)
		out.Devices[i] = device
	}
	for i, automation := range d.Automations {
		automation.Action.Data = cloneData(automation.Action.Data)
		out.Automations[i] = automation
	}
	return out
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// update applies fn to a copy of the config, writes it and reloads.
func (c *ConfigState) update(fn func(*DeviceConfig) error) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	conf := c.DevConf()
	if err := fn(&conf); err != nil {
		return err
	}
	if err := writeDeviceConfig(c.configFile, conf); err != nil {
		return err
	}
	return c.Reload()
}

func AddDevice(conf *ConfigState, deviceName string, model string) (*Device, error) {
	newDevice := Device{Id: shortid.MustGenerate(), Name: deviceName, Model: model}

	err := conf.update(func(devConf *DeviceConfig) error {
		devConf.Devices = append(devConf.Devices, newDevice)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to add new device")
	}
	return findDevice(conf.DevConf(), newDevice.Id), nil
}

// AddIdentifier links a vendor device id to a registered device.
func AddIdentifier(conf *ConfigState, deviceId string, vendorId string) (*Device, error) {
	err := conf.update(func(devConf *DeviceConfig) error {
		for _, device := range devConf.Devices {
			for _, identifier := range device.Identifiers {
				if identifier == vendorId {
					return fmt.Errorf("vendor id %s already belongs to device %s", vendorId, device.Id)
				}
			}
		}
		idx := findDeviceIdx(*devConf, deviceId)
		if idx < 0 {
			return errors.New("Device not found: " + deviceId)
		}
		devConf.Devices[idx].Identifiers = append(devConf.Devices[idx].Identifiers, vendorId)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return findDevice(conf.DevConf(), deviceId), nil
}

func AddAutomation(conf *ConfigState, automation Automation) (*Automation, error) {
	if automation.Id == "" {
		automation.Id = shortid.MustGenerate()
	}
	err := conf.update(func(devConf *DeviceConfig) error {
		device := findDevice(*devConf, automation.Trigger.DeviceID)
		if device == nil {
			return errors.New("Device not found: " + automation.Trigger.DeviceID)
		}
		if err := yolink.ValidateTrigger(automation.Trigger, *device); err != nil {
			return err
		}
		devConf.Automations = append(devConf.Automations, automation)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to add automation")
	}
	return &automation, nil
}

func findDevice(conf DeviceConfig, id string) *Device {
	idx := findDeviceIdx(conf, id)
	if idx < 0 {
		return nil
	}
	device := conf.Devices[idx]
	return &device
}

func findDeviceIdx(conf DeviceConfig, id string) int {
	for idx, device := range conf.Devices {
		if device.Id == id {
			return idx
		}
	}
	return -1
}

func writeDeviceConfig(configFile string, deviceConf DeviceConfig) error {
	out, err := yaml.Marshal(&deviceConf)
	if err != nil {
		return errors.Wrap(err, "failed to marshal device config")
	}
	if err := os.WriteFile(configFile, out, 0666); err != nil {
		return errors.Wrapf(err, "failed to write %s", configFile)
	}
	logrus.WithField("file", configFile).Debug("Wrote device config")
	return nil
}
