package taskapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/tyemirov/taskdeck/internal/sessionkit"
)

func newTaskClient(t *testing.T, router *gin.Engine) *Client {
	t.Helper()
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	transport, transportErr := sessionkit.NewTransport(server.URL, sessionkit.TransportConfig{})
	if transportErr != nil {
		t.Fatalf("transport: %v", transportErr)
	}
	logger := zaptest.NewLogger(t)
	tokens := sessionkit.NewTokenStore(sessionkit.NewSystemClock())
	tokens.Set("test-token", 900)
	sessions := sessionkit.NewSessionStore(tokens, nil, logger)
	httpClient := sessionkit.NewClient(transport, tokens, sessionkit.NewMetadataSlot(), nil, sessions, nil, logger)
	return NewClient(httpClient)
}

func TestListTasksSendsFilterAndDecodesEnvelope(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/task/tasks", func(contextGin *gin.Context) {
		if contextGin.Query("status") != StatusDoing || contextGin.Query("assigneeId") != "user-2" {
			contextGin.JSON(http.StatusBadRequest, gin.H{"message": "missing filter"})
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"list": []gin.H{
			{"id": "task-1", "title": "Prepare quote", "status": StatusDoing, "priority": 2},
			{"id": "task-2", "title": "Call customer", "status": StatusDoing, "priority": 1},
		}})
	})

	client := newTaskClient(t, router)
	tasks, listErr := client.ListTasks(context.Background(), ListTasksFilter{Status: StatusDoing, AssigneeID: "user-2"})
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(tasks) != 2 || tasks[0].ID != "task-1" || tasks[1].Title != "Call customer" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestTaskTimestampsDecodeFromEpochSeconds(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/task/tasks", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"list": []gin.H{
			{
				"id":          "task-1",
				"title":       "Prepare quote",
				"status":      StatusTodo,
				"dueDate":     1726000000,
				"createdAt":   1725000000,
				"completedAt": 0,
			},
		}})
	})

	client := newTaskClient(t, router)
	tasks, listErr := client.ListTasks(context.Background(), ListTasksFilter{})
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(tasks) != 1 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
	if !tasks[0].DueDate.Equal(time.Unix(1726000000, 0)) {
		t.Fatalf("unexpected due date %v", tasks[0].DueDate)
	}
	if !tasks[0].CreatedAt.Equal(time.Unix(1725000000, 0)) {
		t.Fatalf("unexpected created at %v", tasks[0].CreatedAt)
	}
	if !tasks[0].CompletedAt.IsZero() {
		t.Fatalf("a zero completedAt means not completed, got %v", tasks[0].CompletedAt)
	}
}

func TestCreateTaskSendsDueDateAsEpochSeconds(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	var rawDueDate json.RawMessage
	router := gin.New()
	router.POST("/task/tasks", func(contextGin *gin.Context) {
		var payload map[string]json.RawMessage
		if bindErr := contextGin.ShouldBindJSON(&payload); bindErr != nil {
			contextGin.JSON(http.StatusBadRequest, gin.H{"message": "bad payload"})
			return
		}
		rawDueDate = payload["dueDate"]
		contextGin.JSON(http.StatusOK, gin.H{"id": "task-9"})
	})

	client := newTaskClient(t, router)
	dueDate := NewEpochTime(time.Unix(1726000000, 0))
	if _, createErr := client.CreateTask(context.Background(), CreateTaskInput{
		TypeID:  "type-1",
		Title:   "Prepare quote",
		DueDate: &dueDate,
	}); createErr != nil {
		t.Fatalf("create: %v", createErr)
	}
	if string(rawDueDate) != "1726000000" {
		t.Fatalf("expected integer seconds on the wire, got %s", rawDueDate)
	}
}

func TestCreateTaskReturnsNewID(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/task/tasks", func(contextGin *gin.Context) {
		var input CreateTaskInput
		if bindErr := contextGin.ShouldBindJSON(&input); bindErr != nil {
			contextGin.JSON(http.StatusBadRequest, gin.H{"message": "bad payload"})
			return
		}
		if input.Title != "Prepare quote" || input.TypeID != "type-1" {
			contextGin.JSON(http.StatusBadRequest, gin.H{"message": "unexpected payload"})
			return
		}
		contextGin.JSON(http.StatusOK, gin.H{"id": "task-9"})
	})

	client := newTaskClient(t, router)
	taskID, createErr := client.CreateTask(context.Background(), CreateTaskInput{
		TypeID:     "type-1",
		AssigneeID: "user-2",
		Title:      "Prepare quote",
		Priority:   2,
	})
	if createErr != nil {
		t.Fatalf("create: %v", createErr)
	}
	if taskID != "task-9" {
		t.Fatalf("expected task-9, got %q", taskID)
	}
}

func TestUpdateAndDeleteTaskTargetTaskPath(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	updated := false
	deleted := false
	router := gin.New()
	router.PUT("/task/tasks/:id", func(contextGin *gin.Context) {
		updated = contextGin.Param("id") == "task-1"
		contextGin.JSON(http.StatusOK, gin.H{})
	})
	router.DELETE("/task/tasks/:id", func(contextGin *gin.Context) {
		deleted = contextGin.Param("id") == "task-1"
		contextGin.JSON(http.StatusOK, gin.H{})
	})

	client := newTaskClient(t, router)
	if updateErr := client.UpdateTask(context.Background(), "task-1", UpdateTaskInput{Status: StatusDone}); updateErr != nil {
		t.Fatalf("update: %v", updateErr)
	}
	if deleteErr := client.DeleteTask(context.Background(), "task-1"); deleteErr != nil {
		t.Fatalf("delete: %v", deleteErr)
	}
	if !updated || !deleted {
		t.Fatalf("expected both operations to hit the task path, updated=%v deleted=%v", updated, deleted)
	}
}

func TestCreateUserValidatesAndPrehashes(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	var sentPassword string
	router := gin.New()
	router.POST("/user/users", func(contextGin *gin.Context) {
		var input CreateUserInput
		if bindErr := contextGin.ShouldBindJSON(&input); bindErr != nil {
			contextGin.JSON(http.StatusBadRequest, gin.H{"message": "bad payload"})
			return
		}
		sentPassword = input.Password
		contextGin.JSON(http.StatusOK, gin.H{"id": "user-7"})
	})

	client := newTaskClient(t, router)

	if _, createErr := client.CreateUser(context.Background(), CreateUserInput{Username: "new", Email: "bad-email", Password: "password1"}); !errors.Is(createErr, sessionkit.ErrInvalidEmail) {
		t.Fatalf("expected invalid email error, got %v", createErr)
	}
	if _, createErr := client.CreateUser(context.Background(), CreateUserInput{Username: "new", Email: "new@example.com", Password: "weak"}); !errors.Is(createErr, sessionkit.ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", createErr)
	}

	userID, createErr := client.CreateUser(context.Background(), CreateUserInput{Username: "new", Email: "new@example.com", Password: "password1"})
	if createErr != nil {
		t.Fatalf("create user: %v", createErr)
	}
	if userID != "user-7" {
		t.Fatalf("expected user-7, got %q", userID)
	}
	if sentPassword != sessionkit.HashPassword("password1") {
		t.Fatalf("expected pre-hashed password on the wire, got %q", sentPassword)
	}
}

func TestListErrorsCarryStatus(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/task/task-types", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusForbidden, gin.H{"message": "no"})
	})

	client := newTaskClient(t, router)
	_, listErr := client.ListTaskTypes(context.Background())
	if !sessionkit.IsStatus(listErr, http.StatusForbidden) {
		t.Fatalf("expected wrapped 403, got %v", listErr)
	}
}
