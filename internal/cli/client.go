package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Типы ответов дублируются из internal/api: CLI собирается отдельно
// и не тянет серверные пакеты.

// TaskResponse — task из API.
type TaskResponse struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Reward           uint64           `json:"reward"`
	TimeLimitSeconds int              `json:"time_limit_seconds"`
	TemplateID       string           `json:"template_id"`
	Status           string           `json:"status"`
	AssignedTo       string           `json:"assigned_to,omitempty"`
	Events           []map[string]any `json:"events,omitempty"`
}

// WorkerResponse — worker из API.
type WorkerResponse struct {
	PeerID         string `json:"peer_id"`
	Recipient      string `json:"recipient"`
	Nonce          uint64 `json:"nonce"`
	TotalTasks     int    `json:"total_tasks"`
	TasksCompleted int    `json:"tasks_completed"`
	TasksRejected  int    `json:"tasks_rejected"`
	Outstanding    int    `json:"outstanding"`
	TotalEarned    uint64 `json:"total_earned"`
	LastPayout     string `json:"last_payout"`
	Banned         bool   `json:"banned"`
}

// TemplateResponse — шаблон из API.
type TemplateResponse struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Schema    map[string]any `json:"schema,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// AccessCodeResponse — код доступа из API.
type AccessCodeResponse struct {
	Code      string `json:"code"`
	CreatedAt string `json:"created_at"`
}

// PaymentResponse — подписанный платёж из API.
type PaymentResponse struct {
	ID             string `json:"id"`
	Amount         uint64 `json:"amount"`
	Recipient      string `json:"recipient"`
	PaymentAccount string `json:"payment_account"`
	ManagerKey     string `json:"manager_key"`
	Nonce          uint64 `json:"nonce"`
	Label          string `json:"label,omitempty"`
	Signature      string `json:"signature"`
}

// --- Request types ---

// CreateTaskRequest — создание task.
type CreateTaskRequest struct {
	Title            string         `json:"title"`
	Reward           uint64         `json:"reward"`
	TimeLimitSeconds int            `json:"time_limit_seconds"`
	TemplateID       string         `json:"template_id"`
	Data             map[string]any `json:"data,omitempty"`
}

// CreateTemplateRequest — создание шаблона.
type CreateTemplateRequest struct {
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Schema map[string]any `json:"schema,omitempty"`
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

// Client — HTTP-клиент для Foreman API.
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

// --- Tasks ---

// ListTasks возвращает активные tasks.
func (c *Client) ListTasks(offset, limit int) ([]TaskResponse, error) {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", offset))
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var tasks []TaskResponse
	err := c.list("/api/v1/tasks", params, &tasks)
	return tasks, err
}

// CreateTask создаёт новый task.
func (c *Client) CreateTask(req CreateTaskRequest) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks", req, &task)
	return &task, err
}

// GetTask возвращает task с логом событий.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get("/api/v1/tasks/"+id, &task)
	return &task, err
}

// AssignTask вручную запускает назначение task.
func (c *Client) AssignTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.post("/api/v1/tasks/"+id+"/assign", nil, &task)
	return &task, err
}

// --- Workers ---

// ListWorkers возвращает все записи workers.
func (c *Client) ListWorkers() ([]WorkerResponse, error) {
	var workers []WorkerResponse
	err := c.list("/api/v1/workers", nil, &workers)
	return workers, err
}

// GetWorker возвращает запись worker'а.
func (c *Client) GetWorker(peerID string) (*WorkerResponse, error) {
	var worker WorkerResponse
	err := c.get("/api/v1/workers/"+peerID, &worker)
	return &worker, err
}

// SetWorkerBanned банит или разбанивает worker'а.
func (c *Client) SetWorkerBanned(peerID string, banned bool) (*WorkerResponse, error) {
	var worker WorkerResponse
	err := c.put("/api/v1/workers/"+peerID+"/banned", map[string]bool{"banned": banned}, &worker)
	return &worker, err
}

// GetQueue возвращает снапшот очереди планировщика.
func (c *Client) GetQueue() ([]string, error) {
	var queue []string
	err := c.list("/api/v1/queue", nil, &queue)
	return queue, err
}

// SetMaintenance переключает maintenance mode.
func (c *Client) SetMaintenance(enabled bool) error {
	return c.put("/api/v1/maintenance", map[string]bool{"enabled": enabled}, nil)
}

// --- Templates ---

// ListTemplates возвращает все шаблоны.
func (c *Client) ListTemplates() ([]TemplateResponse, error) {
	var templates []TemplateResponse
	err := c.list("/api/v1/templates", nil, &templates)
	return templates, err
}

// CreateTemplate создаёт шаблон.
func (c *Client) CreateTemplate(req CreateTemplateRequest) (*TemplateResponse, error) {
	var tpl TemplateResponse
	err := c.post("/api/v1/templates", req, &tpl)
	return &tpl, err
}

// GetTemplate возвращает шаблон по ID.
func (c *Client) GetTemplate(id string) (*TemplateResponse, error) {
	var tpl TemplateResponse
	err := c.get("/api/v1/templates/"+id, &tpl)
	return &tpl, err
}

// IssueAccessCode выпускает одноразовый код доступа.
func (c *Client) IssueAccessCode() (*AccessCodeResponse, error) {
	var code AccessCodeResponse
	err := c.post("/api/v1/accesscodes", nil, &code)
	return &code, err
}

// GetPayment возвращает сохранённый платёж.
func (c *Client) GetPayment(id string) (*PaymentResponse, error) {
	var p PaymentResponse
	err := c.get("/api/v1/payments/"+id, &p)
	return &p, err
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
