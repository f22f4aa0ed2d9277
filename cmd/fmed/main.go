// Command fmed runs the TR-BOS FME paging-selcall audio detector as a
// long-lived process: it loads configuration, opens an audio device, runs
// the detection pipeline, and dispatches validated sequences to whatever
// sinks the configuration enables (GPIO relay, serial notifier, recorded
// clips, mDNS announcement).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/erl987fme/fmed/internal/clip"
	"github.com/erl987fme/fmed/internal/config"
	"github.com/erl987fme/fmed/internal/device"
	"github.com/erl987fme/fmed/internal/discovery"
	"github.com/erl987fme/fmed/internal/fme"
	"github.com/erl987fme/fmed/internal/logctx"
	"github.com/erl987fme/fmed/internal/relay"
	"github.com/erl987fme/fmed/internal/rig"
	"github.com/erl987fme/fmed/internal/supervisor"
)

func main() {
	var (
		configDir    = pflag.StringP("config", "c", "", "Directory holding audio/detection/FME parameter files (default: built-in TR-BOS FME parameters).")
		deviceName   = pflag.StringP("device", "d", "", "Capture device name (default: system default input).")
		logLevel     = pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
		recordDir    = pflag.String("record-dir", "", "Directory to write post-trigger audio clips into (disables recording if empty).")
		gpioChip     = pflag.String("gpio-chip", "", "GPIO chip to pulse on detection, e.g. gpiochip0 (disabled if empty).")
		gpioLine     = pflag.Int("gpio-line", -1, "GPIO line offset to pulse on detection.")
		gpioPulseMS  = pflag.Int("gpio-pulse-ms", 500, "GPIO pulse width in milliseconds.")
		serialDevice = pflag.String("serial-device", "", "Serial device to notify on detection, e.g. /dev/ttyUSB0 (disabled if empty).")
		serialBaud   = pflag.Int("serial-baud", 9600, "Serial baud rate.")
		rigModel     = pflag.Int("rig-model", 0, "Hamlib rig model number for CAT frequency/squelch annotation (0 disables).")
		rigPort      = pflag.String("rig-port", "", "Hamlib CAT control port.")
		announce     = pflag.Bool("announce", false, "Announce this detector via mDNS/DNS-SD.")
		announcePort = pflag.Int("announce-port", 8420, "Port to advertise in the mDNS announcement.")
		help         = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - TR-BOS FME paging-selcall audio detector\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()

		return
	}

	logger := logctx.New(*logLevel, nil)

	audioCfg, detectionCfg, fmeCfg, err := loadConfig(*configDir)
	if err != nil {
		logger.Fatal("config", "err", err)
	}

	adapter, err := device.NewPortaudio()
	if err != nil {
		logger.Fatal("portaudio", "err", err)
	}

	defer adapter.Close()

	errSink := fme.RuntimeErrorSinkFunc(func(err error) {
		logger.Error("pipeline", "err", err)
	})

	ctrl := supervisor.New(adapter, logger, errSink)

	sv := supervisor.Config{
		Audio:     audioCfg,
		Detection: detectionCfg,
		FME:       fmeCfg,
	}

	if *deviceName != "" {
		sv.Device = device.Identity{Name: *deviceName, Direction: device.Input}
	}

	if err := ctrl.Configure(sv); err != nil {
		logger.Fatal("configure", "err", err)
	}

	var ragent *rig.Rig

	if *rigModel > 0 {
		ragent, err = rig.Open(rig.Config{Model: *rigModel, Port: *rigPort})
		if err != nil {
			logger.Error("rig", "err", err)
		}
	}

	ctrl.RegisterSink(fme.SequenceSinkFunc(func(seq fme.Sequence) {
		if ragent != nil {
			if status, err := ragent.Query(); err == nil {
				seq.Info = status.Annotation()
			}
		}

		logger.Info(fmt.Sprintf("FME sequence detected: %v", seq.Code.Digits()), "start", seq.Start.Format(time.RFC3339), "info", seq.Info)
	}))

	if *recordDir != "" {
		writer, err := clip.NewWriter(*recordDir, "fme-%s-%Y%m%d-%H%M%S.wav")
		if err != nil {
			logger.Fatal("clip", "err", err)
		}

		if err := ctrl.SetRecordedAudioSink(writer); err != nil {
			logger.Error("clip", "err", err)
		}
	}

	if *gpioChip != "" && *gpioLine >= 0 {
		gpio, err := relay.OpenGPIOSink(*gpioChip, *gpioLine, nil, time.Duration(*gpioPulseMS)*time.Millisecond)
		if err != nil {
			logger.Error("relay", "err", err)
		} else {
			defer gpio.Close()
			ctrl.RegisterSink(gpio)
		}
	}

	if *serialDevice != "" {
		serial, err := relay.OpenSerialSink(*serialDevice, *serialBaud, nil)
		if err != nil {
			logger.Error("relay", "err", err)
		} else {
			defer serial.Close()
			ctrl.RegisterSink(serial)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var announcer *discovery.Announcer

	if *announce {
		announcer = discovery.Announce(ctx, logger, "", *announcePort)
	}

	if err := ctrl.Start(ctx); err != nil {
		logger.Fatal("start", "err", err)
	}

	logger.Info("fmed: detector running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("fmed: shutting down")
	announcer.Stop()
	ctrl.Stop()
}

func loadConfig(dir string) (config.AudioSettings, config.DetectionParams, config.FMERules, error) {
	if dir == "" {
		audio, detection, fmeRules := config.Default()

		return audio, detection, fmeRules, nil
	}

	audio, err := config.LoadAudioSettings(dir + "/audio.yaml")
	if err != nil {
		return config.AudioSettings{}, config.DetectionParams{}, config.FMERules{}, err
	}

	detection, err := config.LoadDetectionParams(dir + "/detection.yaml")
	if err != nil {
		return config.AudioSettings{}, config.DetectionParams{}, config.FMERules{}, err
	}

	fmeRules, err := config.LoadFMERules(dir + "/fme.yaml")
	if err != nil {
		return config.AudioSettings{}, config.DetectionParams{}, config.FMERules{}, err
	}

	return audio, detection, fmeRules, nil
}
