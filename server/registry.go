package server

import (
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync"
)

// Registry indexes devices by id, vendor identifier and connection.
type Registry struct {
	byId         *xsync.Map
	byIdentifier *xsync.Map
	byConnection *xsync.Map
}

func NewRegistry() *Registry {
	return &Registry{
		byId:         xsync.NewMap(),
		byIdentifier: xsync.NewMap(),
		byConnection: xsync.NewMap(),
	}
}

func (r *Registry) Get(id string) (Device, bool) {
	v, ok := r.byId.Load(id)
	if !ok {
		return Device{}, false
	}
	return v.(Device), true
}

func (r *Registry) ByIdentifier(vendorId string) (Device, bool) {
	id, ok := r.byIdentifier.Load(vendorId)
	if !ok {
		return Device{}, false
	}
	return r.Get(id.(string))
}

// ByConnection looks a device up by mac address, case insensitive.
func (r *Registry) ByConnection(mac string) (Device, bool) {
	id, ok := r.byConnection.Load(strings.ToLower(mac))
	if !ok {
		return Device{}, false
	}
	return r.Get(id.(string))
}

// All returns devices sorted by name.
func (r *Registry) All() []Device {
	devices := make([]Device, 0, r.byId.Size())
	r.byId.Range(func(_ string, v interface{}) bool {
		devices = append(devices, v.(Device))
		return true
	})
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name == devices[j].Name {
			return devices[i].Id < devices[j].Id
		}
		return devices[i].Name < devices[j].Name
	})
	return devices
}

// Replace swaps the registry content for devices.
func (r *Registry) Replace(devices []Device) {
	ids := make(map[string]struct{}, len(devices))
	identifiers := make(map[string]struct{})
	connections := make(map[string]struct{})

	for _, device := range devices {
		ids[device.Id] = struct{}{}
		r.byId.Store(device.Id, device)
		for _, identifier := range device.Identifiers {
			identifiers[identifier] = struct{}{}
			r.byIdentifier.Store(identifier, device.Id)
		}
		for _, mac := range device.Connections {
			mac = strings.ToLower(mac)
			connections[mac] = struct{}{}
			r.byConnection.Store(mac, device.Id)
		}
	}

	prune(r.byId, ids)
	prune(r.byIdentifier, identifiers)
	prune(r.byConnection, connections)
}

func prune(m *xsync.Map, keep map[string]struct{}) {
	stale := make([]string, 0)
	m.Range(func(key string, _ interface{}) bool {
		if _, ok := keep[key]; !ok {
			stale = append(stale, key)
		}
		return true
	})
	for _, key := range stale {
		m.Delete(key)
	}
}
