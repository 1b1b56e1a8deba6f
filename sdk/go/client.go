package pautasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal pauta HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Agenda represents the API agenda model.
type Agenda struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Number     string `json:"number"`
	Date       string `json:"date"`
	IsFinished bool   `json:"is_finished"`
	Title      string `json:"title"`
}

// Process represents the API process model (partial).
type Process struct {
	ID            string `json:"id"`
	AgendaID      string `json:"agenda_id"`
	Position      int    `json:"position"`
	ProcessNumber string `json:"process_number"`
	CounselorName string `json:"counselor_name"`
	ProcessType   string `json:"process_type"`
	VoteType      string `json:"vote_type"`
	Summary       string `json:"summary"`
}

// Export is a downloaded document.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListAgendas returns agendas, most recent first. finished filters when non-nil.
func (c *Client) ListAgendas(ctx context.Context, finished *bool) ([]Agenda, error) {
	endpoint := "agendas"
	if finished != nil {
		endpoint = fmt.Sprintf("%s?finished=%t", endpoint, *finished)
	}
	var resp struct {
		Items []Agenda `json:"items"`
	}
	err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// GetAgenda fetches an agenda by id.
func (c *Client) GetAgenda(ctx context.Context, id string) (Agenda, error) {
	var resp Agenda
	err := c.doJSON(ctx, http.MethodGet, "agendas/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListProcesses returns the processes of an agenda by position.
func (c *Client) ListProcesses(ctx context.Context, agendaID string) ([]Process, error) {
	var resp []Process
	err := c.doJSON(ctx, http.MethodGet, "agendas/"+url.PathEscape(agendaID)+"/processes", nil, &resp)
	return resp, err
}

// DownloadExport renders a finished agenda in format (docx, xlsx or html).
func (c *Client) DownloadExport(ctx context.Context, agendaID, format string) (Export, error) {
	endpoint := fmt.Sprintf("agendas/%s/export?format=%s", url.PathEscape(agendaID), url.QueryEscape(format))
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Export{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Export{}, err
	}
	out := Export{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		out.Filename = params["filename"]
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.do(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
