package yolink

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event is published on the bus once per physical button action.
type Event struct {
	Type     string `json:"type"`
	DeviceID string `json:"device_id"`
}

// TriggerConfig is a device trigger as written in an automation.
type TriggerConfig struct {
	Platform string `yaml:"platform" json:"platform"`
	Domain   string `yaml:"domain" json:"domain"`
	DeviceID string `yaml:"device_id" json:"device_id"`
	Type     string `yaml:"type" json:"type"`
}

// ValidateTrigger checks a trigger config against the device it targets.
func ValidateTrigger(cfg TriggerConfig, device DeviceInfo) error {
	if cfg.Platform != PlatformDevice {
		return &ErrInvalidPlatform{Platform: cfg.Platform}
	}
	if cfg.Domain != Domain {
		return &ErrInvalidDomain{Domain: cfg.Domain}
	}
	if cfg.DeviceID != device.DeviceID() {
		return &ErrDeviceMismatch{Expected: cfg.DeviceID, Actual: device.DeviceID()}
	}
	if !offersType(device, cfg.Type) {
		return &ErrUnknownTriggerType{Type: cfg.Type, Model: device.DeviceModel()}
	}
	return nil
}

// Matches is exact equality on device id and type.
func Matches(cfg TriggerConfig, event Event) bool {
	return cfg.DeviceID == event.DeviceID && cfg.Type == event.Type
}

// Action is run when an attached trigger fires.
type Action interface {
	Run(ctx context.Context, event Event) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, event Event) error

func (f ActionFunc) Run(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type attachment struct {
	id     uint64
	cfg    TriggerConfig
	action Action
}

// Bridge dispatches inbound events to the actions of matching triggers.
type Bridge struct {
	mu          sync.RWMutex
	nextID      uint64
	attachments []attachment
	logger      logrus.FieldLogger
}

func NewBridge(logger logrus.FieldLogger) *Bridge {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Bridge{logger: logger.WithField("domain", Domain)}
}

// Attach registers an action for a trigger. The returned func detaches it.
func (b *Bridge) Attach(cfg TriggerConfig, action Action) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.attachments = append(b.attachments, attachment{id: id, cfg: cfg, action: action})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, a := range b.attachments {
			if a.id == id {
				b.attachments = append(b.attachments[:i:i], b.attachments[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of attached triggers.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.attachments)
}

// Handle runs every action whose trigger matches the event and returns how
// many fired. Action errors are logged and do not stop the dispatch.
func (b *Bridge) Handle(ctx context.Context, event Event) int {
	b.mu.RLock()
	matched := make([]attachment, 0, 1)
	for _, a := range b.attachments {
		if Matches(a.cfg, event) {
			matched = append(matched, a)
		}
	}
	b.mu.RUnlock()

	for _, a := range matched {
		if err := a.action.Run(ctx, event); err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"device": event.DeviceID,
				"type":   event.Type,
			}).Error("Trigger action failed")
		}
	}
	return len(matched)
}
