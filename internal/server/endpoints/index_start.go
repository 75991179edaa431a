package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/indexer"
	"satchel/internal/store"
	"satchel/internal/svcctx"
)

// StartIndexRequest bounds and configures an indexing run.
type StartIndexRequest struct {
	StartPage int  `json:"start_page,omitempty"`
	EndPage   int  `json:"end_page,omitempty"`
	Force     bool `json:"force,omitempty"`
}

// StartIndexResponse acknowledges an accepted indexing run.
type StartIndexResponse struct {
	BookID         string `json:"book_id"`
	PagesToProcess int    `json:"pages_to_process"`
	Status         string `json:"status"`
}

// StartIndexEndpoint handles POST /api/books/{book_id}/index.
type StartIndexEndpoint struct{}

func (e *StartIndexEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/index", e.handler
}

func (e *StartIndexEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Start indexing a book
//	@Description	Claim the book and start a background indexing run over its pages
//	@Tags			indexing
//	@Accept			json
//	@Produce		json
//	@Param			book_id	path		string				true	"Book ID"
//	@Param			request	body		StartIndexRequest	false	"Run options"
//	@Success		202		{object}	StartIndexResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/index [post]
func (e *StartIndexEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")

	var req StartIndexRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}
	if req.StartPage < 0 || req.EndPage < 0 || (req.EndPage > 0 && req.StartPage > req.EndPage) {
		writeError(w, http.StatusBadRequest, "invalid page range")
		return
	}

	orch := svcctx.IndexerFrom(r.Context())
	result, err := orch.Start(r.Context(), &indexer.StartRequest{
		BookID:    bookID,
		StartPage: req.StartPage,
		EndPage:   req.EndPage,
		Force:     req.Force,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "book not found")
		case errors.Is(err, store.ErrAlreadyIndexing):
			writeError(w, http.StatusConflict, "book is already being indexed")
		case errors.Is(err, indexer.ErrNoPages):
			writeError(w, http.StatusBadRequest, "no pages in requested range")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, StartIndexResponse{
		BookID:         bookID,
		PagesToProcess: result.PagesToProcess,
		Status:         string(store.BookIndexing),
	})
}

func (e *StartIndexEndpoint) Command(getServerURL func() string) *cobra.Command {
	var startPage, endPage int
	var force bool
	cmd := &cobra.Command{
		Use:   "index <book-id>",
		Short: "Start indexing a book's pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := StartIndexRequest{StartPage: startPage, EndPage: endPage, Force: force}
			var resp StartIndexResponse
			if err := client.Post(cmd.Context(), "/api/books/"+args[0]+"/index", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&startPage, "start-page", 0, "first page number to index (1-based)")
	cmd.Flags().IntVar(&endPage, "end-page", 0, "last page number to index (0 = through the end)")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess completed pages and override a stale claim")
	return cmd
}
