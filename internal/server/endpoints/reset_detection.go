package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/store"
	"satchel/internal/svcctx"
)

// ResetDetectionResponse acknowledges a cleared page classification.
type ResetDetectionResponse struct {
	PageID string `json:"page_id"`
	Status string `json:"status"`
}

// ResetDetectionEndpoint handles
// POST /api/books/{book_id}/pages/{page_id}/reset-detection.
// Clearing detection_completed lets the classifier re-run on the page.
type ResetDetectionEndpoint struct{}

func (e *ResetDetectionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/pages/{page_id}/reset-detection", e.handler
}

func (e *ResetDetectionEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Reset page detection
//	@Description	Clear a page's stored classification so the classifier can run again
//	@Tags			pages
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Param			page_id	path		string	true	"Page ID"
//	@Success		200		{object}	ResetDetectionResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/pages/{page_id}/reset-detection [post]
func (e *ResetDetectionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	bookID := r.PathValue("book_id")
	pageID := r.PathValue("page_id")

	page, err := st.GetPage(r.Context(), pageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "page not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if page.BookID != bookID {
		writeError(w, http.StatusNotFound, "page not found in book")
		return
	}

	if err := st.ResetPageDetection(r.Context(), pageID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ResetDetectionResponse{PageID: pageID, Status: "reset"})
}

func (e *ResetDetectionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-detection <book-id> <page-id>",
		Short: "Clear a page's stored classification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/books/" + args[0] + "/pages/" + args[1] + "/reset-detection"
			var resp ResetDetectionResponse
			if err := client.Post(cmd.Context(), path, nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
