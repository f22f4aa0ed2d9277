// Package discovery announces a detector instance on the local network via
// mDNS/DNS-SD, adapted from the teacher's dns_sd.go (which used the same
// github.com/brutella/dnssd package to announce its KISS-over-TCP
// service). Here the service announced is whatever control/status
// endpoint cmd/fmed exposes, so operators can find a detector on a
// network without typing in its address.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType is the DNS-SD service type advertised for a detector's
// status endpoint.
const ServiceType = "_fmed._tcp"

// Announcer runs an mDNS responder advertising one detector instance.
type Announcer struct {
	log      *log.Logger
	service  *dnssd.Service
	responder dnssd.Responder
	cancel   context.CancelFunc
}

// Announce starts advertising name on port, returning an Announcer the
// caller must Stop. Failures are logged and return a nil Announcer rather
// than aborting startup — discovery is a convenience, not a dependency of
// detection (spec §4.8 scopes the controller's correctness to the
// detection pipeline, not to ancillary services).
func Announce(ctx context.Context, logger *log.Logger, name string, port int) *Announcer {
	if name == "" {
		name = "fmed"
	}

	cfg := dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: ServiceType,
		Port: port,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		logger.Error("discovery: failed to create service", "err", err)

		return nil
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		logger.Error("discovery: failed to create responder", "err", err)

		return nil
	}

	if _, err := responder.Add(svc); err != nil {
		logger.Error("discovery: failed to add service", "err", err)

		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	a := &Announcer{log: logger, service: &svc, responder: responder, cancel: cancel}

	go func() {
		if err := responder.Respond(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error("discovery: responder stopped", "err", err)
		}
	}()

	logger.Info(fmt.Sprintf("discovery: announcing %s on port %d as %q", ServiceType, port, name))

	return a
}

// Stop withdraws the announcement.
func (a *Announcer) Stop() {
	if a == nil {
		return
	}

	a.cancel()
}
