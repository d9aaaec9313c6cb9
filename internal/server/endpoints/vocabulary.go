package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/svcctx"
)

// VocabularyResponse lists the subjects looked for, in output order.
type VocabularyResponse struct {
	Subjects []string `json:"subjects"`
}

// VocabularyEndpoint handles GET /api/vocabulary.
type VocabularyEndpoint struct{}

func (e *VocabularyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/vocabulary", e.handler
}

func (e *VocabularyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary	Subject vocabulary
//	@Tags		scan
//	@Produce	json
//	@Success	200	{object}	VocabularyResponse
//	@Failure	503	{object}	ErrorResponse
//	@Router		/api/vocabulary [get]
func (e *VocabularyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	p := svcctx.PipelineFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}
	writeJSON(w, http.StatusOK, VocabularyResponse{Subjects: p.Vocabulary().Subjects()})
}

func (e *VocabularyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "vocabulary",
		Short: "List the subjects the server extracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp VocabularyResponse
			if err := client.Get(cmd.Context(), "/api/vocabulary", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
