package server

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type pairingReport struct {
	VendorId string
	Model    string
}

// PairingState lets one pairing at a time receive presses from remotes that
// are not registered yet.
type PairingState struct {
	mu      sync.Mutex
	channel chan pairingReport
}

func InitPairing() *PairingState {
	return &PairingState{}
}

// offer hands a report to the running pairing. It never blocks.
func (p *PairingState) offer(report pairingReport) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return false
	}
	select {
	case p.channel <- report:
	default:
		logrus.WithField("vendor_id", report.VendorId).Warn("Pairing queue full, dropping press")
	}
	return true
}

func (p *PairingState) start() (chan pairingReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		return nil, false
	}
	p.channel = make(chan pairingReport, 16)
	return p.channel, true
}

func (p *PairingState) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channel = nil
}

// Active reports whether a pairing is in progress.
func (p *PairingState) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel != nil
}

type pressTracker struct {
	consecutiveCount uint8
	lastPressed      time.Time
}

const (
	pairingWindow      = 20 * time.Second
	pairingPressGap    = 2 * time.Second
	pairingPressNeeded = 3
)

// StartPairing waits for an unregistered remote to be pressed three times in
// a row and links it to deviceId.
func StartPairing(ctx context.Context, deviceId string, config *ConfigState, pairing *PairingState) (*Device, error) {
	device := findDevice(config.DevConf(), deviceId)
	if device == nil {
		return nil, errors.New("Device not found: " + deviceId)
	}

	reports, ok := pairing.start()
	if !ok {
		return nil, errors.New("Another pairing in progress")
	}
	defer pairing.reset()

	ctx, cancel := context.WithTimeout(ctx, pairingWindow)
	defer cancel()

	trackers := make(map[string]pressTracker)
	for {
		select {
		case report := <-reports:
			if len(device.Model) != 0 && device.Model != report.Model {
				logrus.WithField("model", report.Model).Debug("Ignoring press due to model mismatch")
				continue
			}
			now := time.Now()
			tracked, seen := trackers[report.VendorId]
			if !seen || now.Sub(tracked.lastPressed) > pairingPressGap {
				trackers[report.VendorId] = pressTracker{consecutiveCount: 1, lastPressed: now}
				continue
			}
			tracked = pressTracker{consecutiveCount: tracked.consecutiveCount + 1, lastPressed: now}
			trackers[report.VendorId] = tracked
			if tracked.consecutiveCount < pairingPressNeeded {
				continue
			}
			logrus.WithFields(logrus.Fields{"device": deviceId, "vendor_id": report.VendorId}).Info("Paired remote")
			return AddIdentifier(config, deviceId, report.VendorId)

		case <-ctx.Done():
			return nil, errors.New("No remotes paired")
		}
	}
}
