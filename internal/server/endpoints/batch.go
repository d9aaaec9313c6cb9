package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/pipeline"
	"github.com/jackzampolin/rapor/internal/svcctx"
)

// BatchEndpoint handles POST /api/batch.
type BatchEndpoint struct{}

var _ api.Endpoint = (*BatchEndpoint)(nil)

func (e *BatchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/batch", e.handler
}

func (e *BatchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Process the input folder
//	@Description	Runs the batch over the server's input folder and returns the per-document report.
//	@Tags			scan
//	@Produce		json
//	@Success		200	{object}	pipeline.Report
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/batch [post]
func (e *BatchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	b := svcctx.BatchFrom(r.Context())
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "batch runner not configured")
		return
	}

	report, err := b.Run(r.Context())
	if err != nil {
		if de, ok := pipeline.AsDocumentError(err); ok {
			writeDocumentError(w, de)
			return
		}
		if pipeline.IsCancelled(err) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (e *BatchEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Process the server's input folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var report pipeline.Report
			if err := client.Post(cmd.Context(), "/api/batch", nil, &report); err != nil {
				return err
			}
			return api.Output(report)
		},
	}
}
