package endpoints

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/rapor/internal/api"
	"github.com/jackzampolin/rapor/internal/export"
	"github.com/jackzampolin/rapor/internal/pipeline"
	"github.com/jackzampolin/rapor/internal/scores"
	"github.com/jackzampolin/rapor/internal/svcctx"
)

// maxUploadMemory bounds the in-memory part of a multipart upload.
const maxUploadMemory = 64 << 20

// ScanResponse is the recognition result for an uploaded document.
type ScanResponse struct {
	ID       string                `json:"id"`
	Document string                `json:"document"`
	Text     string                `json:"text"`
	Scores   scores.Mapping        `json:"scores"`
	Pages    []pipeline.PageResult `json:"pages"`
	Written  *export.Written       `json:"written,omitempty"`
}

// String renders the combined export, used by the text output format.
func (r ScanResponse) String() string {
	return export.Combined(r.Text, r.Scores)
}

// ScanEndpoint handles POST /api/scan with a multipart file upload.
type ScanEndpoint struct{}

var _ api.Endpoint = (*ScanEndpoint)(nil)

func (e *ScanEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/scan", e.handler
}

func (e *ScanEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Recognize a report card
//	@Description	Upload a PDF or image; returns the recognized text and subject scores.
//	@Description	With format=txt the combined text and score lines are returned as ocr_results.txt.
//	@Tags			scan
//	@Accept			mpfd
//	@Produce		json
//	@Produce		plain
//	@Param			file	formData	file	true	"PDF, PNG or JPEG document"
//	@Param			format	query		string	false	"json (default) or txt"
//	@Param			save	query		bool	false	"Also write the result files"
//	@Success		200		{object}	ScanResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		415		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/scan [post]
func (e *ScanEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p := svcctx.PipelineFrom(ctx)
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not initialized")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	fh, ok := r.MultipartForm.File["file"]
	if !ok || len(fh) == 0 {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	name := filepath.Base(fh[0].Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if !pipeline.Supported(name) {
		writeDocumentError(w, &pipeline.DocumentError{
			Kind:     pipeline.KindUnsupported,
			Document: name,
			Detail:   fmt.Sprintf("extension %q", filepath.Ext(name)),
		})
		return
	}

	id := uuid.New().String()
	dir, err := uploadDir(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	if err := saveUpload(fh[0], path); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save upload: %v", err))
		return
	}

	logger := svcctx.LoggerFrom(ctx)
	logger.Info("scan requested", "id", id, "name", name, "size", fh[0].Size)

	res, err := p.Process(ctx, path)
	if err != nil {
		if de, ok := pipeline.AsDocumentError(err); ok {
			writeDocumentError(w, de)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ScanResponse{
		ID:       id,
		Document: res.Document,
		Text:     res.Text,
		Scores:   res.Scores,
		Pages:    res.Pages,
	}

	if r.URL.Query().Get("save") == "true" {
		exp := svcctx.ExporterFrom(ctx)
		if exp == nil {
			writeError(w, http.StatusServiceUnavailable, "exporter not initialized")
			return
		}
		written, err := exp.Save(ctx, res.Document, res.Text, res.Scores)
		if err != nil {
			writeDocumentError(w, &pipeline.DocumentError{Kind: pipeline.KindExport, Document: res.Document, Err: err})
			return
		}
		resp.Written = written
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "txt") {
		w.Header().Set("Content-Type", export.CombinedContentType+"; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.CombinedFileName))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, resp.String())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func uploadDir(ctx context.Context, id string) (string, error) {
	root := ""
	if s := svcctx.ServicesFrom(ctx); s != nil {
		root = s.UploadsDir
	}
	if root == "" {
		return os.MkdirTemp("", "rapor-upload-*")
	}
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	return dir, nil
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeDocumentError maps a document failure to an HTTP status. Faults of
// the document are 4xx; only export failures are server errors.
func writeDocumentError(w http.ResponseWriter, de *pipeline.DocumentError) {
	status := http.StatusInternalServerError
	switch de.Kind {
	case pipeline.KindUnsupported:
		status = http.StatusUnsupportedMediaType
	case pipeline.KindUnreadable, pipeline.KindRecognition:
		status = http.StatusUnprocessableEntity
	}
	if pipeline.IsCancelled(de) {
		status = http.StatusServiceUnavailable
	}

	detail := de.Detail
	if de.Err != nil {
		if detail != "" {
			detail += ": "
		}
		detail += de.Err.Error()
	}
	writeJSON(w, status, ErrorResponse{
		Error:    de.Error(),
		Kind:     string(de.Kind),
		Document: de.Document,
		Detail:   detail,
	})
}

func (e *ScanEndpoint) Command(getServerURL func() string) *cobra.Command {
	var download string
	var save bool

	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Upload a document to the server for recognition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			path := "/api/scan"
			if save {
				path += "?save=true"
			}

			if download != "" {
				sep := "?"
				if save {
					sep = "&"
				}
				body, err := client.PostFile(ctx, path+sep+"format=txt", args[0], nil)
				if err != nil {
					return err
				}
				if err := os.WriteFile(download, body, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", download, err)
				}
				fmt.Printf("Saved %s\n", download)
				return nil
			}

			var resp ScanResponse
			if _, err := client.PostFile(ctx, path, args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&download, "download", "", "write the combined text export to this file")
	cmd.Flags().BoolVar(&save, "save", false, "also write result files on the server")
	return cmd
}
