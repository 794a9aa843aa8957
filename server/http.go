package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lhhong/yolink2mqtt/templates"
	"github.com/lhhong/yolink2mqtt/yolink"
	"github.com/sirupsen/logrus"
)

type Api struct {
	Host     *Host
	Config   *ConfigState
	Pairing  *PairingState
	Hub      *EventHub
	Recorder *ServiceRecorder
}

func NewRouter(api *Api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", api.index)
	r.Route("/api", func(r chi.Router) {
		r.Get("/devices", api.listDevices)
		r.Post("/devices", api.createDevice)
		r.Get("/devices/{id}/triggers", api.listTriggers)
		r.Post("/devices/{id}/pair", api.pairDevice)
		r.Post("/automations", api.createAutomation)
		r.Post("/events", api.fireEvent)
		r.Get("/calls", api.listCalls)
	})
	if api.Hub != nil {
		r.Handle("/ws/events", api.Hub)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *Api) index(w http.ResponseWriter, r *http.Request) {
	devices := a.Host.Registry.All()
	views := make([]templates.DeviceView, 0, len(devices))
	for _, device := range devices {
		view := templates.DeviceView{
			Id:          device.Id,
			Name:        device.Name,
			Model:       device.Model,
			Identifiers: device.Identifiers,
		}
		for _, trigger := range yolink.ListTriggers(device) {
			view.Triggers = append(view.Triggers, templates.TriggerView{Type: trigger.Type})
		}
		views = append(views, view)
	}
	events, fired := a.Host.EventCount()

	w.Header().Set("Content-Type", "text/html")
	if err := templates.RootDoc(views, templates.Stats{Events: events, Fired: fired}).Render(r.Context(), w); err != nil {
		logrus.WithError(err).Warn("Failed to render index")
	}
}

func (a *Api) listDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Host.Registry.All())
}

func (a *Api) listTriggers(w http.ResponseWriter, r *http.Request) {
	triggers, ok := a.Host.ListTriggers(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, triggers)
}

type createDeviceRequest struct {
	Name  string `json:"name"`
	Model string `json:"model"`
}

func (a *Api) createDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	device, err := AddDevice(a.Config, req.Name, req.Model)
	if err != nil {
		logrus.WithError(err).Error("Failed to add device")
		writeError(w, http.StatusInternalServerError, "failed to add device")
		return
	}
	writeJSON(w, http.StatusCreated, device)
}

func (a *Api) pairDevice(w http.ResponseWriter, r *http.Request) {
	device, err := StartPairing(r.Context(), chi.URLParam(r, "id"), a.Config, a.Pairing)
	if err != nil {
		logrus.WithError(err).Warn("Pairing failed")
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (a *Api) createAutomation(w http.ResponseWriter, r *http.Request) {
	var automation Automation
	if err := json.NewDecoder(r.Body).Decode(&automation); err != nil {
		writeError(w, http.StatusBadRequest, "malformed automation")
		return
	}
	if _, _, err := splitService(automation.Action.Service); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := AddAutomation(a.Config, automation)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *Api) fireEvent(w http.ResponseWriter, r *http.Request) {
	var event yolink.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}
	a.Host.FireEvent(r.Context(), event)
	w.WriteHeader(http.StatusAccepted)
}

func (a *Api) listCalls(w http.ResponseWriter, r *http.Request) {
	if a.Recorder == nil {
		writeJSON(w, http.StatusOK, []RecordedCall{})
		return
	}
	writeJSON(w, http.StatusOK, a.Recorder.Calls())
}
