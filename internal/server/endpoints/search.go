package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"satchel/internal/api"
	"satchel/internal/search"
	"satchel/internal/svcctx"
)

// SearchRequest is a free-text search with optional book filters.
type SearchRequest struct {
	Query      string `json:"query"`
	GradeLevel string `json:"grade_level,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// SearchEndpoint handles POST /api/search.
type SearchEndpoint struct{}

func (e *SearchEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/search", e.handler
}

func (e *SearchEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Search indexed content
//	@Description	Full-text search over indexed pages, grouped by book and ranked by relevance
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SearchRequest	true	"Search query"
//	@Success		200		{object}	search.Response
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/search [post]
func (e *SearchEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	engine := svcctx.SearchFrom(r.Context())
	resp, err := engine.Search(r.Context(), &search.Request{
		Query:      req.Query,
		GradeLevel: req.GradeLevel,
		Subject:    req.Subject,
		Limit:      req.Limit,
	})
	if err != nil {
		if errors.Is(err, search.ErrQueryTooShort) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *SearchEndpoint) Command(getServerURL func() string) *cobra.Command {
	var gradeLevel, subject string
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed book content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			req := SearchRequest{Query: args[0], GradeLevel: gradeLevel, Subject: subject, Limit: limit}
			var resp search.Response
			if err := client.Post(cmd.Context(), "/api/search", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&gradeLevel, "grade-level", "", "filter by grade level")
	cmd.Flags().StringVar(&subject, "subject", "", "filter by subject")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum index rows to consider")
	return cmd
}
