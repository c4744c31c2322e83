package olympiads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/grindolympiads/examgate/config"
)

// Client represents a GrindOlympiads backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new GrindOlympiads backend API client.
func New(cfg *config.BackendConfig) *Client {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError represents a non-OK response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend request failed with status %d: %s", e.StatusCode, e.Message)
}

// User represents the user payload returned by the backend.
type User struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Avatar    string          `json:"avatar"`
	IsAdmin   bool            `json:"isAdmin"`
	IsStaff   bool            `json:"isStaff"`
	CreatedAt string          `json:"createdAt"`
	LastLogin string          `json:"lastLogin"`
	Points    int             `json:"points"`
	Role      string          `json:"role"`
	Progress  []ProgressEntry `json:"progress"`
}

// ProgressEntry represents a completed exam record. Records are append-only
// on the backend and read-only here.
type ProgressEntry struct {
	TestID      string `json:"testId"`
	Competition string `json:"competition"`
	Year        string `json:"year"`
	Exam        string `json:"exam"`
	Score       int    `json:"score"`
	CompletedAt string `json:"completedAt"`
}

// Notification represents a user notification.
type Notification struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// Exam represents an entry in the exam listing.
type Exam struct {
	Competition string `json:"competition"`
	Year        string `json:"year"`
	Exam        string `json:"exam"`
}

// Problem represents a single problem of an exam.
type Problem struct {
	ID        string   `json:"id"`
	Statement string   `json:"statement"`
	Choices   []string `json:"choices,omitempty"`
}

// ExamDetail represents a full exam with its problems.
type ExamDetail struct {
	Exam
	Problems []Problem `json:"problems"`
}

// LoginResult is the response of the login exchange.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AnswerSubmission is the payload for submitting an answer.
type AnswerSubmission struct {
	ExamID       string `json:"examId"`
	ProblemIndex int    `json:"problemIndex"`
	Answer       string `json:"answer"`
}

// doRequest performs an HTTP request against the backend. A non-empty token
// is sent as a bearer token. Non-2xx responses are converted to an APIError
// carrying the backend's error message or a generic fallback.
func (c *Client) doRequest(ctx context.Context, method, endpoint, token string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, newAPIError(resp)
	}

	return resp, nil
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: "unexpected backend error"}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	}
	return apiErr
}

func decodeInto[T any](resp *http.Response) (T, error) {
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("error decoding backend response: %w", err)
	}
	return out, nil
}

// Login exchanges a provider identity assertion for an application token.
func (c *Client) Login(ctx context.Context, assertion string) (*LoginResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/login", assertion, nil)
	if err != nil {
		return nil, err
	}
	result, err := decodeInto[LoginResult](resp)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Revoke invalidates the server-side session for the given token.
// Callers treat this as best-effort.
func (c *Client) Revoke(ctx context.Context, token string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/logout", token, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// UserProfile retrieves the profile of the token's user.
func (c *Client) UserProfile(ctx context.Context, token string) (*User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/user-profile", token, nil)
	if err != nil {
		return nil, err
	}
	user, err := decodeInto[User](resp)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserProgress retrieves the completed exam records of the token's user.
func (c *Client) UserProgress(ctx context.Context, token string) ([]ProgressEntry, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/user-progress", token, nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]ProgressEntry](resp)
}

// Notifications retrieves the most recent notifications of the token's user.
func (c *Client) Notifications(ctx context.Context, token string) ([]Notification, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/notifications", token, nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]Notification](resp)
}

// MarkNotificationRead marks a single notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, token, notificationID string) error {
	body := map[string]string{"notification_id": notificationID}
	resp, err := c.doRequest(ctx, http.MethodPost, "/update-notification", token, body)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// AdminUsers retrieves all registered users. Requires an admin token.
func (c *Client) AdminUsers(ctx context.Context, token string) ([]User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/admin/users", token, nil)
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[struct {
		Users []User `json:"users"`
	}](resp)
	if err != nil {
		return nil, err
	}
	return payload.Users, nil
}

// Exams retrieves the exam listing.
func (c *Client) Exams(ctx context.Context, token string) ([]Exam, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/exams", token, nil)
	if err != nil {
		return nil, err
	}
	payload, err := decodeInto[struct {
		Tests []Exam `json:"tests"`
	}](resp)
	if err != nil {
		return nil, err
	}
	return payload.Tests, nil
}

// Exam retrieves a single exam with its problems.
func (c *Client) Exam(ctx context.Context, token, id string) (*ExamDetail, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/exams/"+id, token, nil)
	if err != nil {
		return nil, err
	}
	detail, err := decodeInto[ExamDetail](resp)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdateProblem updates a problem's statement and choices. Requires an admin token.
func (c *Client) UpdateProblem(ctx context.Context, token string, problem *Problem) error {
	resp, err := c.doRequest(ctx, http.MethodPut, "/problems/"+problem.ID, token, problem)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// SubmitAnswer submits an answer for a problem of an exam.
func (c *Client) SubmitAnswer(ctx context.Context, token string, submission *AnswerSubmission) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/answers", token, submission)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
