package server

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/yaml.v2"
)

func InitConfig(watcher *fsnotify.Watcher) (*ConfigState, error) {
	envVars, err := getEnvVars()
	if err != nil {
		return nil, err
	}
	return initConfigAt(envVars, watcher)
}

func initConfigAt(envVars EnvVars, watcher *fsnotify.Watcher) (*ConfigState, error) {
	deviceConfigFile := path.Join(envVars.ConfigDir, deviceConfigFileName)

	if err := initConfigFileIfNotExist(envVars.ConfigDir, deviceConfigFile); err != nil {
		return nil, err
	}

	config := &ConfigState{
		EnvVars:    envVars,
		configFile: deviceConfigFile,
		devConf:    DeviceConfig{Devices: []Device{}},
	}

	if err := config.Reload(); err != nil {
		return nil, errors.Wrap(err, "failed initial config load")
	}

	if watcher != nil {
		if err := watchConfigFile(deviceConfigFile, watcher, config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func getEnvVars() (EnvVars, error) {
	envVars := EnvVars{
		HaDiscoveryPrefix: os.Getenv("HA_DISCOVERY_PREFIX"),
		ConfigDir:         os.Getenv("CONFIG_DIR"),
		MqttBroker:        os.Getenv("MQTT_BROKER"),
		ReportTopic:       os.Getenv("YOLINK_REPORT_TOPIC"),
		RootTopic:         os.Getenv("ROOT_TOPIC"),
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
	}
	if err := defaults.Set(&envVars); err != nil {
		return envVars, errors.Wrap(err, "failed to apply config defaults")
	}
	if err := validator.New().Struct(envVars); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range fieldErrs {
				logrus.WithField("field", e.Field()).Warn("Invalid environment value")
			}
		}
		return envVars, errors.Wrap(err, "invalid environment")
	}
	return envVars, nil
}

func initConfigFileIfNotExist(configDir string, deviceConfigFile string) error {
	_, err := os.Stat(deviceConfigFile)
	if !errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(configDir, 0777); err != nil {
		return errors.Wrapf(err, "failed to create %s", configDir)
	}
	return writeDeviceConfig(deviceConfigFile, DeviceConfig{Devices: []Device{}})
}

func watchConfigFile(deviceConfigFile string, watcher *fsnotify.Watcher, config *ConfigState) error {
	if err := watcher.Add(deviceConfigFile); err != nil {
		return errors.Wrapf(err, "failed to watch %s", deviceConfigFile)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				logrus.WithField("event", event.String()).Debug("Config file watcher event")
				for i := 0; i < 15; i++ {
					// Editors truncate before writing, retry until the file parses.
					time.Sleep(30 * time.Millisecond)
					if err := config.Reload(); err != nil {
						logrus.WithError(err).Warn("Failed to reload config")
					} else {
						break
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Error("Error watching config file")
			}
		}
	}()
	return nil
}

func loadExistingConfig(deviceConfigFile string) (*DeviceConfig, error) {
	logrus.WithField("file", deviceConfigFile).Info("Loading config")
	deviceConfLoad, err := os.ReadFile(deviceConfigFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read device config")
	}
	var deviceConf DeviceConfig
	if err := yaml.Unmarshal(deviceConfLoad, &deviceConf); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal device config")
	}
	if deviceConf.Devices == nil {
		deviceConf.Devices = []Device{}
	}

	generated := false
	for i := range deviceConf.Devices {
		if deviceConf.Devices[i].Id == "" {
			deviceConf.Devices[i].Id = shortid.MustGenerate()
			generated = true
		}
	}
	for i := range deviceConf.Automations {
		if deviceConf.Automations[i].Id == "" {
			deviceConf.Automations[i].Id = shortid.MustGenerate()
			generated = true
		}
		deviceConf.Automations[i].Action.Data = normalizeYamlMap(deviceConf.Automations[i].Action.Data)
	}
	if generated {
		if err := writeDeviceConfig(deviceConfigFile, deviceConf); err != nil {
			return nil, err
		}
	}
	return &deviceConf, nil
}

// normalizeYamlMap converts the map[interface{}]interface{} values yaml.v2
// produces into map[string]any so the data can be encoded as json.
func normalizeYamlMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = normalizeYamlValue(v)
	}
	return out
}

func normalizeYamlValue(v any) any {
	switch value := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]any, len(value))
		for k, inner := range value {
			out[fmt.Sprint(k)] = normalizeYamlValue(inner)
		}
		return out
	case map[string]any:
		return normalizeYamlMap(value)
	case []interface{}:
		out := make([]any, len(value))
		for i, inner := range value {
			out[i] = normalizeYamlValue(inner)
		}
		return out
	default:
		return v
	}
}
