package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/svcctx"
)

// HealthResponse answers /health and /ready.
type HealthResponse struct {
	Status  string `json:"status"`
	Engines string `json:"engines,omitempty"`
}

func (h HealthResponse) String() string {
	if h.Engines == "" {
		return h.Status
	}
	return fmt.Sprintf("%s (engines %s)", h.Status, h.Engines)
}

// healthCommand prints the HealthResponse at path.
func healthCommand(use, short, path string, serverURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp HealthResponse
			if err := api.NewClient(serverURL()).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// HealthEndpoint reports liveness.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Liveness check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(serverURL func() string) *cobra.Command {
	return healthCommand("health", "Is the server up", "/health", serverURL)
}

// ReadyEndpoint reports 200 only once the OCR engines are initialized.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	OK once the OCR engines are initialized
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if reg := svcctx.EnginesFrom(r.Context()); reg != nil && reg.Initialized() {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Engines: "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Engines: "not_initialized"})
}

func (e *ReadyEndpoint) Command(serverURL func() string) *cobra.Command {
	return healthCommand("ready", "Are the OCR engines initialized", "/ready", serverURL)
}

// StatusResponse describes the running server.
type StatusResponse struct {
	Server      string   `json:"server"`
	Engines     []string `json:"engines"`
	Initialized bool     `json:"initialized"`
	Primary     string   `json:"primary,omitempty"`
	Secondary   string   `json:"secondary,omitempty"`
	MergePolicy string   `json:"merge_policy,omitempty"`
	Vocabulary  []string `json:"vocabulary"`
	Documents   int      `json:"documents"`
	Home        string   `json:"home,omitempty"`
}

type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Registered engines, engine roles and the subject vocabulary
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatusResponse{
		Server:    "running",
		Documents: svcctx.MetricsFrom(ctx).Report().Documents,
	}
	if reg := svcctx.EnginesFrom(ctx); reg != nil {
		resp.Engines, resp.Initialized = reg.Names(), reg.Initialized()
	}
	if cfg := svcctx.ConfigFrom(ctx); cfg != nil {
		resp.MergePolicy = cfg.Merge.Policy
	}
	if p := svcctx.PipelineFrom(ctx); p != nil {
		resp.Vocabulary = p.Vocabulary().Subjects()
		if rec := p.Recognizer(); rec != nil {
			resp.Primary = rec.Primary().Name()
			if sec := rec.Secondary(); sec != nil {
				resp.Secondary = sec.Name()
			}
		}
	}
	if h := svcctx.HomeFrom(ctx); h != nil {
		resp.Home = h.Path()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(serverURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Engines, engine roles and vocabulary of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp StatusResponse
			if err := api.NewClient(serverURL()).Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
