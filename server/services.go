package server

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ServiceExecutor runs the action of a fired automation.
type ServiceExecutor interface {
	Call(ctx context.Context, call ServiceCall) error
}

// Publisher is the part of the mqtt client services and discovery need.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// ErrInvalidService defines a service name that is not domain.name.
type ErrInvalidService struct {
	Service string
}

// Error formats output.
func (e *ErrInvalidService) Error() string {
	return "invalid service name: " + e.Service
}

func splitService(service string) (string, string, error) {
	domain, name, ok := strings.Cut(service, ".")
	if !ok || domain == "" || name == "" || strings.Contains(name, ".") {
		return "", "", &ErrInvalidService{Service: service}
	}
	return domain, name, nil
}

// MqttServiceExecutor publishes service calls as json to
// <root>/service/<domain>/<name>.
type MqttServiceExecutor struct {
	publisher Publisher
	rootTopic string
}

func NewMqttServiceExecutor(publisher Publisher, rootTopic string) *MqttServiceExecutor {
	return &MqttServiceExecutor{publisher: publisher, rootTopic: rootTopic}
}

func (e *MqttServiceExecutor) Call(_ context.Context, call ServiceCall) error {
	domain, name, err := splitService(call.Service)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(call)
	if err != nil {
		return errors.Wrap(err, "failed to serialize service call")
	}
	topic := e.rootTopic + "/service/" + domain + "/" + name
	if err := e.publisher.Publish(topic, false, payload); err != nil {
		return errors.Wrapf(err, "failed to publish %s", call.Service)
	}
	logrus.WithFields(logrus.Fields{"service": call.Service, "topic": topic}).Info("Called service")
	return nil
}

type RecordedCall struct {
	ServiceCall
	At time.Time `json:"at"`
}

// ServiceRecorder keeps the most recent service calls and forwards them to
// next when set.
type ServiceRecorder struct {
	mu    sync.Mutex
	next  ServiceExecutor
	limit int
	calls []RecordedCall
}

func NewServiceRecorder(next ServiceExecutor, limit int) *ServiceRecorder {
	return &ServiceRecorder{next: next, limit: limit}
}

func (r *ServiceRecorder) Call(ctx context.Context, call ServiceCall) error {
	if _, _, err := splitService(call.Service); err != nil {
		return err
	}

	r.mu.Lock()
	r.calls = append(r.calls, RecordedCall{ServiceCall: call, At: time.Now()})
	if r.limit > 0 && len(r.calls) > r.limit {
		r.calls = r.calls[len(r.calls)-r.limit:]
	}
	next := r.next
	r.mu.Unlock()

	if next == nil {
		return nil
	}
	return next.Call(ctx, call)
}

// SetNext sets the executor recorded calls are forwarded to.
func (r *ServiceRecorder) SetNext(next ServiceExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = next
}

// Calls returns recorded calls, oldest first.
func (r *ServiceRecorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}
