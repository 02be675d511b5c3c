package taskapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tyemirov/taskdeck/internal/sessionkit"
)

const (
	tasksPath     = "/task/tasks"
	taskTypesPath = "/task/task-types"
	salesPath     = "/task/sales"
	usersPath     = "/user/users"
)

// Client is a typed wrapper over the authenticated HTTP pipeline for the
// task and user services.
type Client struct {
	httpClient *sessionkit.Client
}

func NewClient(httpClient *sessionkit.Client) *Client {
	return &Client{httpClient: httpClient}
}

type listEnvelope[Item any] struct {
	List []Item `json:"list"`
}

type createdResponse struct {
	ID string `json:"id"`
}

// ListTasks fetches tasks matching the filter.
func (client *Client) ListTasks(ctx context.Context, filter ListTasksFilter) ([]Task, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.AssigneeID != "" {
		query.Set("assigneeId", filter.AssigneeID)
	}
	if filter.TypeID != "" {
		query.Set("typeId", filter.TypeID)
	}
	path := tasksPath
	if encoded := query.Encode(); encoded != "" {
		path = path + "?" + encoded
	}
	var envelope listEnvelope[Task]
	if listErr := client.httpClient.Get(ctx, path, &envelope); listErr != nil {
		return nil, fmt.Errorf("taskapi.list_tasks: %w", listErr)
	}
	return envelope.List, nil
}

// GetTask fetches a single task.
func (client *Client) GetTask(ctx context.Context, taskID string) (Task, error) {
	var task Task
	if getErr := client.httpClient.Get(ctx, tasksPath+"/"+taskID, &task); getErr != nil {
		return Task{}, fmt.Errorf("taskapi.get_task: %w", getErr)
	}
	return task, nil
}

// CreateTask creates a task and returns its id.
func (client *Client) CreateTask(ctx context.Context, input CreateTaskInput) (string, error) {
	var created createdResponse
	if createErr := client.httpClient.Post(ctx, tasksPath, input, &created); createErr != nil {
		return "", fmt.Errorf("taskapi.create_task: %w", createErr)
	}
	return created.ID, nil
}

// UpdateTask applies a partial update to a task.
func (client *Client) UpdateTask(ctx context.Context, taskID string, input UpdateTaskInput) error {
	if updateErr := client.httpClient.Put(ctx, tasksPath+"/"+taskID, input, nil); updateErr != nil {
		return fmt.Errorf("taskapi.update_task: %w", updateErr)
	}
	return nil
}

// DeleteTask removes a task.
func (client *Client) DeleteTask(ctx context.Context, taskID string) error {
	if deleteErr := client.httpClient.Delete(ctx, tasksPath+"/"+taskID, nil); deleteErr != nil {
		return fmt.Errorf("taskapi.delete_task: %w", deleteErr)
	}
	return nil
}

// ListTaskTypes fetches all task types.
func (client *Client) ListTaskTypes(ctx context.Context) ([]TaskType, error) {
	var envelope listEnvelope[TaskType]
	if listErr := client.httpClient.Get(ctx, taskTypesPath, &envelope); listErr != nil {
		return nil, fmt.Errorf("taskapi.list_task_types: %w", listErr)
	}
	return envelope.List, nil
}

// CreateTaskType creates a task type and returns its id.
func (client *Client) CreateTaskType(ctx context.Context, taskType TaskType) (string, error) {
	var created createdResponse
	if createErr := client.httpClient.Post(ctx, taskTypesPath, taskType, &created); createErr != nil {
		return "", fmt.Errorf("taskapi.create_task_type: %w", createErr)
	}
	return created.ID, nil
}

// DeleteTaskType removes a task type.
func (client *Client) DeleteTaskType(ctx context.Context, taskTypeID string) error {
	if deleteErr := client.httpClient.Delete(ctx, taskTypesPath+"/"+taskTypeID, nil); deleteErr != nil {
		return fmt.Errorf("taskapi.delete_task_type: %w", deleteErr)
	}
	return nil
}

// ListSalesPersons fetches the sales roster.
func (client *Client) ListSalesPersons(ctx context.Context) ([]SalesPerson, error) {
	var envelope listEnvelope[SalesPerson]
	if listErr := client.httpClient.Get(ctx, salesPath, &envelope); listErr != nil {
		return nil, fmt.Errorf("taskapi.list_sales: %w", listErr)
	}
	return envelope.List, nil
}

// CreateSalesPerson adds a sales roster entry and returns its id.
func (client *Client) CreateSalesPerson(ctx context.Context, salesPerson SalesPerson) (string, error) {
	var created createdResponse
	if createErr := client.httpClient.Post(ctx, salesPath, salesPerson, &created); createErr != nil {
		return "", fmt.Errorf("taskapi.create_sales: %w", createErr)
	}
	return created.ID, nil
}

// DeleteSalesPerson removes a sales roster entry.
func (client *Client) DeleteSalesPerson(ctx context.Context, salesPersonID string) error {
	if deleteErr := client.httpClient.Delete(ctx, salesPath+"/"+salesPersonID, nil); deleteErr != nil {
		return fmt.Errorf("taskapi.delete_sales: %w", deleteErr)
	}
	return nil
}

// ListUsers fetches all users. The backend restricts this to admins.
func (client *Client) ListUsers(ctx context.Context) ([]sessionkit.User, error) {
	var envelope listEnvelope[sessionkit.User]
	if listErr := client.httpClient.Get(ctx, usersPath, &envelope); listErr != nil {
		return nil, fmt.Errorf("taskapi.list_users: %w", listErr)
	}
	return envelope.List, nil
}

// CreateUserInput is the payload for creating a user account.
type CreateUserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// CreateUser creates a user account. The password is pre-hashed before it
// is sent.
func (client *Client) CreateUser(ctx context.Context, input CreateUserInput) (string, error) {
	if !sessionkit.IsValidEmail(input.Email) {
		return "", sessionkit.ErrInvalidEmail
	}
	if !sessionkit.IsStrongPassword(input.Password) {
		return "", sessionkit.ErrWeakPassword
	}
	input.Password = sessionkit.HashPassword(input.Password)
	var created createdResponse
	if createErr := client.httpClient.Post(ctx, usersPath, input, &created); createErr != nil {
		return "", fmt.Errorf("taskapi.create_user: %w", createErr)
	}
	return created.ID, nil
}

// DeleteUser removes a user account.
func (client *Client) DeleteUser(ctx context.Context, userID string) error {
	if deleteErr := client.httpClient.Delete(ctx, usersPath+"/"+userID, nil); deleteErr != nil {
		return fmt.Errorf("taskapi.delete_user: %w", deleteErr)
	}
	return nil
}
