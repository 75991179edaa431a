package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/store"
	"satchel/internal/svcctx"
)

// IndexStatusResponse is the polling surface for an indexing run: the
// book-level status plus every per-page index entry.
type IndexStatusResponse struct {
	BookID      string                `json:"book_id"`
	IndexStatus store.BookIndexStatus `json:"index_status"`
	Entries     []*store.IndexEntry   `json:"entries"`
	Completed   int                   `json:"completed"`
	Errored     int                   `json:"errored"`
}

// IndexStatusEndpoint handles GET /api/books/{book_id}/index.
type IndexStatusEndpoint struct{}

func (e *IndexStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/index", e.handler
}

func (e *IndexStatusEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get indexing status
//	@Description	Report the book's index status and per-page entry statuses
//	@Tags			indexing
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	IndexStatusResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/index [get]
func (e *IndexStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	bookID := r.PathValue("book_id")

	book, err := st.GetBook(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	entries, err := st.ListEntries(r.Context(), bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := IndexStatusResponse{
		BookID:      bookID,
		IndexStatus: book.IndexStatus,
		Entries:     entries,
	}
	for _, entry := range entries {
		switch entry.IndexStatus {
		case store.EntryCompleted:
			resp.Completed++
		case store.EntryError:
			resp.Errored++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *IndexStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "index-status <book-id>",
		Short: "Get a book's indexing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp IndexStatusResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/index", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
