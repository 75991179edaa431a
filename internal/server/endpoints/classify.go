package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/classifier"
	"satchel/internal/svcctx"
	"satchel/internal/vision"
)

// ClassifyRequest identifies a page image to classify.
type ClassifyRequest struct {
	ImageURL  string `json:"image_url"`
	PageIndex int    `json:"page_index"`
	PageID    string `json:"page_id,omitempty"`
}

// ClassifyEndpoint handles POST /api/pages/classify.
type ClassifyEndpoint struct{}

func (e *ClassifyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pages/classify", e.handler
}

func (e *ClassifyEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Classify a page
//	@Description	Detect the printed page number and page type from a page image
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ClassifyRequest	true	"Page to classify"
//	@Success		200		{object}	classifier.Result
//	@Failure		400		{object}	ErrorResponse
//	@Failure		402		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/pages/classify [post]
func (e *ClassifyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ImageURL == "" {
		writeError(w, http.StatusBadRequest, "image_url is required")
		return
	}

	cls := svcctx.ClassifierFrom(r.Context())
	result, err := cls.Classify(r.Context(), &classifier.Request{
		ImageURL:  req.ImageURL,
		PageIndex: req.PageIndex,
		PageID:    req.PageID,
	})
	if err != nil {
		writeVisionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *ClassifyEndpoint) Command(getServerURL func() string) *cobra.Command {
	var pageIndex int
	var pageID string
	cmd := &cobra.Command{
		Use:   "classify <image-url>",
		Short: "Classify a page image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := ClassifyRequest{ImageURL: args[0], PageIndex: pageIndex, PageID: pageID}
			var resp classifier.Result
			if err := client.Post(cmd.Context(), "/api/pages/classify", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&pageIndex, "page-index", 0, "zero-based page index")
	cmd.Flags().StringVar(&pageID, "page-id", "", "page record ID (enables cache and persistence)")
	return cmd
}

// writeVisionError maps the typed vision failures onto HTTP statuses.
func writeVisionError(w http.ResponseWriter, err error) {
	var upstream *vision.UpstreamError
	switch {
	case errors.Is(err, vision.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "vision service rate limited, retry later")
	case errors.Is(err, vision.ErrQuotaExhausted):
		writeError(w, http.StatusPaymentRequired, "vision service quota exhausted")
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, upstream.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
