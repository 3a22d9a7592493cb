package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"draftforge/pkg/domain"
)

// SubjectClient fetches subject context from the book/chapter CRUD service.
// It implements ContextProvider.
type SubjectClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSubjectClient builds a client for the given service base URL.
func NewSubjectClient(baseURL string) *SubjectClient {
	return &SubjectClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SubjectClient) GetSubjectContext(ctx context.Context, subjectID string) (domain.SubjectContext, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/internal/subjects/%s/context", c.baseURL, subjectID), nil)
	if err != nil {
		return domain.SubjectContext{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SubjectContext{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = resp.Status
		}
		return domain.SubjectContext{}, fmt.Errorf("subject service error: %s", msg)
	}
	var sctx domain.SubjectContext
	if err := json.NewDecoder(resp.Body).Decode(&sctx); err != nil {
		return domain.SubjectContext{}, err
	}
	return sctx, nil
}
