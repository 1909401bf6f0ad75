package client

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/s0up4200/deletarr-go/internal/config"
)

const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusDisabled = "disabled"
)

// Health is the connectivity state of one external service.
type Health struct {
	Name    string `json:"name,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Version string `json:"version,omitempty"`
}

// Report keeps the download client apart from the organizers so a service
// name can never shadow it.
type Report struct {
	DownloadClient Health            `json:"downloadClient"`
	Services       map[string]Health `json:"services"`
}

// Failed returns the number of entries in an error state.
func (r Report) Failed() int {
	n := 0
	if r.DownloadClient.Status == StatusError {
		n++
	}
	for _, h := range r.Services {
		if h.Status == StatusError {
			n++
		}
	}
	return n
}

// CheckServices reports the state of the download client and of every
// configured organizer. dc may be nil when connecting failed, in which case
// connectErr is reported.
func CheckServices(ctx context.Context, cfg *config.Config, dc DownloadClient, connectErr error) Report {
	report := Report{Services: make(map[string]Health, len(cfg.Services))}

	dch := Health{Name: "downloadClient"}
	if dc != nil {
		dch.Name = dc.Name()
	}
	switch {
	case connectErr != nil:
		dch.Status, dch.Message = StatusError, connectErr.Error()
	case dc == nil:
		dch.Status, dch.Message = StatusError, "not connected"
	default:
		if err := dc.Ping(ctx); err != nil {
			dch.Status, dch.Message = StatusError, err.Error()
		} else {
			dch.Status = StatusOK
		}
	}
	report.DownloadClient = dch

	for _, svc := range cfg.Services {
		switch {
		case !svc.IsEnabled():
			report.Services[svc.Name] = Health{Status: StatusDisabled}
			continue
		case svc.URL == "":
			report.Services[svc.Name] = Health{Status: StatusDisabled, Message: "no url configured"}
			continue
		}

		status, err := NewArrClient(svc.Name, svc.URL, svc.APIKey).SystemStatus(ctx)
		if err != nil {
			log.Warn().Err(err).Str("service", svc.Name).Msg("service health check failed")
			report.Services[svc.Name] = Health{Status: StatusError, Message: err.Error()}
			continue
		}
		report.Services[svc.Name] = Health{Status: StatusOK, Version: status.Version}
	}

	return report
}
