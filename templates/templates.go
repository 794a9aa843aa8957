// Package templates renders the device overview page.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// TriggerView is one trigger listed under a device.
type TriggerView struct {
	Type string
}

// DeviceView is a device section on the index page.
type DeviceView struct {
	Id          string
	Name        string
	Model       string
	Identifiers []string
	Triggers    []TriggerView
}

// Stats are the event counters shown in the page header.
type Stats struct {
	Events int64
	Fired  int64
}

func write(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}

func TriggerEntry(trigger TriggerView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return write(w, `<li class="trigger">`, templ.EscapeString(trigger.Type), `</li>`)
	})
}

func DeviceEntry(device DeviceView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		err := write(w,
			`<section class="device" id="device-`, templ.EscapeString(device.Id), `">`,
			`<h2>`, templ.EscapeString(device.Name), `</h2>`,
			`<p class="model">`, templ.EscapeString(device.Model), `</p>`,
		)
		if err != nil {
			return err
		}
		if len(device.Triggers) == 0 {
			if err := write(w, `<p class="empty">No triggers available for this device</p>`); err != nil {
				return err
			}
		} else {
			if err := write(w, `<ul>`); err != nil {
				return err
			}
			for _, trigger := range device.Triggers {
				if err := TriggerEntry(trigger).Render(ctx, w); err != nil {
					return err
				}
			}
			if err := write(w, `</ul>`); err != nil {
				return err
			}
		}
		return write(w, `</section>`)
	})
}

func RootDoc(devices []DeviceView, stats Stats) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		err := write(w,
			`<!doctype html><html><head><meta charset="utf-8"><title>yolink triggers</title></head><body>`,
			`<h1>yolink triggers</h1>`,
			fmt.Sprintf(`<p class="stats">%d events, %d automations fired</p>`, stats.Events, stats.Fired),
		)
		if err != nil {
			return err
		}
		for _, device := range devices {
			if err := DeviceEntry(device).Render(ctx, w); err != nil {
				return err
			}
		}
		return write(w, `</body></html>`)
	})
}
