package server

import (
	"context"
	"sync"

	"github.com/lhhong/yolink2mqtt/yolink"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync"
	"github.com/sirupsen/logrus"
)

// Host wires the yolink triggers to the device registry, the event bus and
// the service executor.
type Host struct {
	Registry *Registry
	Bus      *Bus
	Bridge   *yolink.Bridge

	executor ServiceExecutor
	logger   logrus.FieldLogger
	events   *xsync.Counter
	fired    *xsync.Counter

	mu     sync.Mutex
	detach []func()
}

func NewHost(executor ServiceExecutor, logger logrus.FieldLogger) *Host {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &Host{
		Registry: NewRegistry(),
		Bus:      NewBus(logger),
		Bridge:   yolink.NewBridge(logger),
		executor: executor,
		logger:   logger,
		events:   new(xsync.Counter),
		fired:    new(xsync.Counter),
	}
	h.Bus.Listen(yolink.EventType, h.onYolinkEvent)
	return h
}

func (h *Host) onYolinkEvent(ctx context.Context, data any) {
	event, ok := data.(yolink.Event)
	if !ok {
		h.logger.WithField("data", data).Warn("Ignoring yolink event with unexpected payload")
		return
	}
	h.events.Inc()
	fired := h.Bridge.Handle(ctx, event)
	h.fired.Add(int64(fired))
	h.logger.WithFields(logrus.Fields{
		"device": event.DeviceID,
		"type":   event.Type,
		"fired":  fired,
	}).Debug("Handled yolink event")
}

// FireEvent publishes a yolink event on the bus.
func (h *Host) FireEvent(ctx context.Context, event yolink.Event) {
	h.Bus.Fire(ctx, yolink.EventType, event)
}

// ListTriggers returns false when the device is not registered.
func (h *Host) ListTriggers(deviceId string) ([]yolink.TriggerDescriptor, bool) {
	device, ok := h.Registry.Get(deviceId)
	if !ok {
		return nil, false
	}
	return yolink.ListTriggers(device), true
}

// EventCount returns how many yolink events were seen and how many
// automations they fired.
func (h *Host) EventCount() (events int64, fired int64) {
	return h.events.Value(), h.fired.Value()
}

// Apply loads the devices into the registry and re-attaches every automation.
func (h *Host) Apply(conf DeviceConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Registry.Replace(conf.Devices)

	for _, detach := range h.detach {
		detach()
	}
	h.detach = nil

	for _, automation := range conf.Automations {
		if err := h.checkAutomation(automation); err != nil {
			h.logger.WithError(err).WithField("automation", automation.Id).Error("Skipping automation")
			continue
		}
		h.detach = append(h.detach, h.Bridge.Attach(automation.Trigger, h.serviceAction(automation)))
	}
	h.logger.WithFields(logrus.Fields{
		"devices":     len(conf.Devices),
		"automations": len(h.detach),
	}).Info("Applied device config")
}

func (h *Host) checkAutomation(automation Automation) error {
	if _, _, err := splitService(automation.Action.Service); err != nil {
		return err
	}
	device, ok := h.Registry.Get(automation.Trigger.DeviceID)
	if !ok {
		return errors.New("unknown device " + automation.Trigger.DeviceID)
	}
	err := yolink.ValidateTrigger(automation.Trigger, device)
	var stale *yolink.ErrUnknownTriggerType
	if errors.As(err, &stale) {
		// The device model may have changed after the automation was written.
		h.logger.WithError(err).WithField("automation", automation.Id).Warn("Automation trigger is not offered by its device")
		return nil
	}
	return err
}

func (h *Host) serviceAction(automation Automation) yolink.Action {
	return yolink.ActionFunc(func(ctx context.Context, event yolink.Event) error {
		return h.executor.Call(ctx, ServiceCall{
			Service: automation.Action.Service,
			Data:    cloneData(automation.Action.Data),
		})
	})
}
