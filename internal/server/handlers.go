package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/quantmind-br/bomgate/internal/domain"
	"github.com/quantmind-br/bomgate/internal/utils"
)

func (s *Server) health(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"status": "OK"})
}

func (s *Server) sbom(c *gin.Context) {
	body, err := readBody(c.Request)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortJSON(c, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		_ = c.Error(err)
		abortJSON(c, http.StatusBadRequest, "malformed JSON body")
		return
	}

	query := queryValues(c)
	opts, err := domain.DecodeRequestOptions(domain.MergeOptions(s.opts.Defaults, body, query))
	if err != nil {
		_ = c.Error(err)
		abortJSON(c, http.StatusBadRequest, "invalid request options")
		return
	}
	opts.Locator = domain.Locator(query, body)

	utils.LoggerFromContext(c.Request.Context(), s.logger).Debug().
		Bool("git", opts.Git).
		Bool("private", opts.Private).
		Strs("types", opts.ProjectType).
		Msg("SBOM requested")

	s.handler.Handle(c.Request.Context(), c.Writer, opts)
}

// readBody decodes a JSON object body. An empty body, or one that is not
// declared as JSON, yields an empty map.
func readBody(r *http.Request) (map[string]any, error) {
	body := map[string]any{}
	if r.Body == nil || r.Body == http.NoBody {
		return body, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 || !isJSON(r.Header.Get("Content-Type")) {
		return body, nil
	}

	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// queryValues returns the first value of every recognized query key plus
// the path and url locators
func queryValues(c *gin.Context) map[string]string {
	values := make(map[string]string, len(domain.QueryParams)+2)
	for _, key := range append([]string{"path", "url"}, domain.QueryParams...) {
		if v := c.Query(key); v != "" {
			values[key] = v
		}
	}
	return values
}
