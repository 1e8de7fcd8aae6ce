package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// FailureReason — причина неудачной попытки отправки.
type FailureReason struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// DispatchResponse — dispatch из API.
type DispatchResponse struct {
	DispatchID        string          `json:"dispatchId"`
	CorrelationID     string          `json:"correlationId,omitempty"`
	SenderClientID    string          `json:"senderClientId,omitempty"`
	RecipientClientID string          `json:"recipientClientId,omitempty"`
	ServiceName       string          `json:"serviceName,omitempty"`
	NotificationType  string          `json:"notificationType,omitempty"`
	Status            string          `json:"status"`
	RetryCount        int             `json:"retryCount"`
	FailureReasons    []FailureReason `json:"failureReasons"`
	TriggersAt        string          `json:"triggersAt,omitempty"`
	TriggeredID       string          `json:"triggeredId,omitempty"`
	AppointmentID     string          `json:"appointmentId,omitempty"`
	SentAt            string          `json:"sentAt,omitempty"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
}

// PurgeResponse — результат удаления dispatch клиента.
type PurgeResponse struct {
	Deleted     int      `json:"deleted"`
	DispatchIDs []string `json:"dispatchIds"`
}

// TriggerResponse — trigger из API.
type TriggerResponse struct {
	DispatchID  string `json:"dispatchId"`
	ExpireAt    string `json:"expireAt"`
	TriggeredID string `json:"triggeredId"`
}

// LeaseResponse — аренда лидерства из API.
type LeaseResponse struct {
	LeaderType string `json:"leaderType"`
	OwnerID    string `json:"ownerId"`
	UpdatedAt  string `json:"updatedAt"`
	Expired    bool   `json:"expired"`
}

// SettingsResponse — настройки клиента из API.
type SettingsResponse struct {
	ID                            string `json:"id"`
	OrgName                       string `json:"orgName,omitempty"`
	Phone                         string `json:"phone,omitempty"`
	Platform                      string `json:"platform,omitempty"`
	ExternalUserID                string `json:"externalUserId,omitempty"`
	IsPushNotificationsEnabled    bool   `json:"isPushNotificationsEnabled"`
	IsAppointmentsReminderEnabled bool   `json:"isAppointmentsReminderEnabled"`
	FirstName                     string `json:"firstName,omitempty"`
}

// --- Request types ---

// SubmitDispatchRequest — createDispatch через API.
type SubmitDispatchRequest struct {
	DispatchID        string `json:"dispatchId"`
	SenderClientID    string `json:"senderClientId,omitempty"`
	RecipientClientID string `json:"recipientClientId,omitempty"`
	NotificationType  string `json:"notificationType,omitempty"`
	Content           string `json:"content,omitempty"`
	TriggersAt        string `json:"triggersAt,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Courier API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Dispatches ---

// GetDispatch возвращает dispatch по ID.
func (c *Client) GetDispatch(id string) (*DispatchResponse, error) {
	var d DispatchResponse
	err := c.get("/api/v1/dispatches/"+url.PathEscape(id), &d)
	return &d, err
}

// ListDispatches возвращает dispatch отправителя.
func (c *Client) ListDispatches(sender string) ([]DispatchResponse, error) {
	params := url.Values{}
	params.Set("sender", sender)

	var dispatches []DispatchResponse
	err := c.list("/api/v1/dispatches", params, &dispatches)
	return dispatches, err
}

// ProjectDispatches возвращает только указанные поля dispatch отправителя.
func (c *Client) ProjectDispatches(sender string, fields []string) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("sender", sender)
	params.Set("fields", strings.Join(fields, ","))

	var rows []map[string]any
	err := c.list("/api/v1/dispatches", params, &rows)
	return rows, err
}

// SubmitDispatch ставит createDispatch в очередь conductor.
func (c *Client) SubmitDispatch(req SubmitDispatchRequest) error {
	return c.post("/api/v1/dispatches", req, nil)
}

// CancelDispatch отменяет dispatch.
func (c *Client) CancelDispatch(id string) (*DispatchResponse, error) {
	var d DispatchResponse
	err := c.post("/api/v1/dispatches/"+url.PathEscape(id)+"/cancel", nil, &d)
	return &d, err
}

// PurgeClientDispatches удаляет все dispatch получателя.
func (c *Client) PurgeClientDispatches(clientID string) (*PurgeResponse, error) {
	var resp PurgeResponse
	err := c.doData(http.MethodDelete, "/api/v1/clients/"+url.PathEscape(clientID)+"/dispatches", nil, &resp)
	return &resp, err
}

// GetTrigger возвращает trigger dispatch.
func (c *Client) GetTrigger(dispatchID string) (*TriggerResponse, error) {
	var tr TriggerResponse
	err := c.get("/api/v1/triggers/"+url.PathEscape(dispatchID), &tr)
	return &tr, err
}

// --- Leases ---

// GetLease возвращает аренду лидерства домена.
func (c *Client) GetLease(leaderType string) (*LeaseResponse, error) {
	var l LeaseResponse
	err := c.get("/api/v1/leases/"+url.PathEscape(leaderType), &l)
	return &l, err
}

// --- Client settings ---

// GetSettings возвращает настройки клиента.
func (c *Client) GetSettings(id string) (*SettingsResponse, error) {
	var s SettingsResponse
	err := c.get("/api/v1/client-settings/"+url.PathEscape(id), &s)
	return &s, err
}

// UpdateSettings частично обновляет настройки клиента.
func (c *Client) UpdateSettings(id string, patch map[string]any) (*SettingsResponse, error) {
	var s SettingsResponse
	err := c.put("/api/v1/client-settings/"+url.PathEscape(id), patch, &s)
	return &s, err
}

// DeleteSettings удаляет настройки клиента.
func (c *Client) DeleteSettings(id string) error {
	return c.delete("/api/v1/client-settings/" + url.PathEscape(id))
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
