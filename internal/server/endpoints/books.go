package endpoints

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/store"
	"satchel/internal/svcctx"
)

// ListBooksResponse is the response for listing books.
type ListBooksResponse struct {
	Books []*store.Book `json:"books"`
}

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List books
//	@Description	List books in the library, optionally only active ones
//	@Tags			books
//	@Produce		json
//	@Param			active	query		bool	false	"Only active books"
//	@Success		200		{object}	ListBooksResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	activeOnly := r.URL.Query().Get("active") == "true"

	books, err := st.ListBooks(r.Context(), activeOnly)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListBooksResponse{Books: books})
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List all books",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/books"
			if activeOnly {
				path += "?active=true"
			}
			var resp ListBooksResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only list active books")
	return cmd
}

// GetBookEndpoint handles GET /api/books/{book_id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a book
//	@Description	Get one book by ID
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	store.Book
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{book_id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())

	book, err := st.GetBook(r.Context(), r.PathValue("book_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book <book-id>",
		Short: "Get a book by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp store.Book
			if err := client.Get(cmd.Context(), "/api/books/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ListPagesResponse is the response for listing a book's pages.
type ListPagesResponse struct {
	BookID string        `json:"book_id"`
	Pages  []*store.Page `json:"pages"`
}

// ListPagesEndpoint handles GET /api/books/{book_id}/pages.
type ListPagesEndpoint struct{}

func (e *ListPagesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}/pages", e.handler
}

func (e *ListPagesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List pages
//	@Description	List a book's pages in page-number order
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	ListPagesResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/pages [get]
func (e *ListPagesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	bookID := r.PathValue("book_id")

	if _, err := st.GetBook(r.Context(), bookID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pages, err := st.ListPages(r.Context(), bookID, 0, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ListPagesResponse{BookID: bookID, Pages: pages})
}

func (e *ListPagesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "pages <book-id>",
		Short: "List a book's pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListPagesResponse
			if err := client.Get(cmd.Context(), "/api/books/"+args[0]+"/pages", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
