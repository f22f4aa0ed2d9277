//go:build linux

package device

import (
	"strings"

	"github.com/jochenvg/go-udev"
)

// EnrichFromUdev walks the Linux "sound" subsystem and returns ALSA card
// metadata (card name, card index) to annotate the names portaudio's own
// enumeration reports (spec §4.8, "Enumerate input devices"). Portaudio
// already knows the device list; udev only adds the human-readable ALSA
// card description portaudio's PortAudio/ALSA host API sometimes loses.
func EnrichFromUdev() (map[string]string, error) {
	u := udev.Udev{}

	enum := u.NewEnumerate()
	if err := enum.AddMatchSubsystem("sound"); err != nil {
		return nil, err
	}

	devices, err := enum.Devices()
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(devices))

	for _, d := range devices {
		sysname := d.Sysname()
		if !strings.HasPrefix(sysname, "card") {
			continue
		}

		if id := d.PropertyValue("ID_MODEL"); id != "" {
			names[sysname] = id
		}
	}

	return names, nil
}
