package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/metrics"
	"github.com/jackzampolin/rapor/internal/svcctx"
)

// MetricsEndpoint handles GET /api/metrics.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/metrics", e.handler
}

func (e *MetricsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Engine call statistics
//	@Description	Per-engine call counts, failures, characters and latency, plus fallback and document counts.
//	@Description	Pass engine=<name> to get a single engine summary.
//	@Tags			metrics
//	@Produce		json
//	@Param			engine	query		string	false	"Engine name"
//	@Success		200		{object}	metrics.Report
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/metrics [get]
func (e *MetricsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	report := svcctx.MetricsFrom(r.Context()).Report()

	if engine := r.URL.Query().Get("engine"); engine != "" {
		if summary, ok := report.Engines[engine]; ok {
			writeJSON(w, http.StatusOK, summary)
			return
		}
		// Registered but not called yet.
		if reg := svcctx.EnginesFrom(r.Context()); reg != nil && reg.Has(engine) {
			writeJSON(w, http.StatusOK, &metrics.Summary{})
			return
		}
		writeError(w, http.StatusNotFound, "unknown engine "+engine)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func (e *MetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var engine string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Get OCR engine call statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if engine != "" {
				var summary metrics.Summary
				if err := client.Get(cmd.Context(), "/api/metrics?engine="+url.QueryEscape(engine), &summary); err != nil {
					return err
				}
				return api.Output(summary)
			}
			var report metrics.Report
			if err := client.Get(cmd.Context(), "/api/metrics", &report); err != nil {
				return err
			}
			return api.Output(report)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "only this engine")
	return cmd
}
