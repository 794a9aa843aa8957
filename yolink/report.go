package yolink

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Report is a message from the yolink cloud report topic.
type Report struct {
	Event    string          `json:"event"`
	Time     int64           `json:"time"`
	MsgID    string          `json:"msgid"`
	DeviceID string          `json:"deviceId"`
	Data     json.RawMessage `json:"data"`
}

type remoteReportData struct {
	Event *struct {
		KeyMask int    `json:"keyMask"`
		Type    string `json:"type"`
	} `json:"event"`
}

const maxRemoteButtons = 4

// DecodeReport turns a raw cloud report into the vendor device id and the
// trigger type it stands for. ok is false for reports that are not button
// presses.
func DecodeReport(payload []byte) (vendorID string, triggerType string, ok bool, err error) {
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return "", "", false, errors.Wrap(err, "malformed yolink report")
	}

	deviceType, _, _ := strings.Cut(report.Event, ".")
	if deviceType != ModelSmartRemoter.String() || len(report.Data) == 0 {
		return report.DeviceID, "", false, nil
	}

	var data remoteReportData
	if err := json.Unmarshal(report.Data, &data); err != nil {
		return report.DeviceID, "", false, errors.Wrap(err, "malformed remote report data")
	}
	if data.Event == nil || data.Event.KeyMask == 0 {
		return report.DeviceID, "", false, nil
	}

	button := 0
	for i := 0; i < maxRemoteButtons; i++ {
		if data.Event.KeyMask&(1<<i) != 0 {
			button = i + 1
			break
		}
	}
	if button == 0 {
		return report.DeviceID, "", false, nil
	}

	var press string
	switch data.Event.Type {
	case "Press":
		press = ShortPress
	case "LongPress":
		press = LongPress
	default:
		return report.DeviceID, "", false, nil
	}
	return report.DeviceID, fmt.Sprintf("button_%d_%s", button, press), true, nil
}
