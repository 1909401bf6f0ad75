package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/s0up4200/deletarr-go/internal/client"
	"github.com/s0up4200/deletarr-go/internal/config"
	"github.com/s0up4200/deletarr-go/internal/pruner"
)

const healthTimeout = 15 * time.Second

type handlers struct {
	deps Dependencies
}

func newHandlers(deps Dependencies) *handlers {
	if deps.Connect == nil {
		deps.Connect = client.New
	}
	return &handlers{deps: deps}
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.deps.Version,
		"env":     h.deps.Env,
	})
}

func (h *handlers) servicesHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	cfg := h.deps.Coordinator.Config()
	dc, err := h.deps.Connect(ctx, cfg)
	if err == nil {
		defer func() {
			if cerr := dc.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("failed to close download client")
			}
		}()
	}
	RespondJSON(w, http.StatusOK, client.CheckServices(ctx, cfg, dc, err))
}

func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.deps.Coordinator.Config().Redacted())
}

func (h *handlers) updateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if !DecodeJSON(w, r, &cfg) {
		return
	}

	cfg.RestoreSecrets(h.deps.Coordinator.Config())
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.deps.ConfigPath != "" {
		if err := config.Save(h.deps.ConfigPath, &cfg, config.ExampleHeader); err != nil {
			log.Error().Err(err).Msg("failed to save configuration")
			RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	h.deps.Coordinator.SetConfig(&cfg)
	log.Info().Msg("configuration updated via API")

	RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Configuration saved",
	})
}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	lines := []string{}
	if h.deps.Logs != nil {
		lines = append(lines, h.deps.Logs.Lines()...)
	}
	RespondJSON(w, http.StatusOK, map[string][]string{"logs": lines})
}

func (h *handlers) dryRun(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, true)
}

func (h *handlers) run(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, false)
}

func (h *handlers) trigger(w http.ResponseWriter, r *http.Request, dryRun bool) {
	result := h.deps.Coordinator.Run(r.Context(), &dryRun)

	switch {
	case errors.Is(result.Err(), pruner.ErrRunInProgress):
		RespondError(w, http.StatusConflict, result.Error)
	case !result.Success:
		RespondJSON(w, http.StatusInternalServerError, result)
	default:
		RespondJSON(w, http.StatusOK, result)
	}
}
