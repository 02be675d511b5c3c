package taskapi

// Task statuses as the backend reports them.
const (
	StatusTodo  = "TODO"
	StatusDoing = "DOING"
	StatusDone  = "DONE"
)

type Task struct {
	ID            string     `json:"id"`
	TypeID        string     `json:"typeId"`
	CreatorID     string     `json:"creatorId"`
	AssigneeID    string     `json:"assigneeId"`
	SalesPersonID string     `json:"salesPersonId,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Status        string    `json:"status"`
	Priority      int       `json:"priority"`
	DueDate       EpochTime `json:"dueDate"`
	CreatedAt     EpochTime `json:"createdAt"`
	CompletedAt   EpochTime `json:"completedAt"`
	ProgressCount int       `json:"progressCount"`
}

type TaskType struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ColorCode string `json:"colorCode"`
}

type SalesPerson struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CreateTaskInput is the payload for creating a task.
type CreateTaskInput struct {
	TypeID        string     `json:"typeId"`
	AssigneeID    string     `json:"assigneeId"`
	SalesPersonID string     `json:"salesPersonId,omitempty"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Priority      int        `json:"priority"`
	DueDate       *EpochTime `json:"dueDate,omitempty"`
}

// UpdateTaskInput is the payload for updating a task. Zero-valued fields are
// omitted so the backend keeps their current values.
type UpdateTaskInput struct {
	TypeID        string     `json:"typeId,omitempty"`
	AssigneeID    string     `json:"assigneeId,omitempty"`
	SalesPersonID string     `json:"salesPersonId,omitempty"`
	Title         string     `json:"title,omitempty"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status,omitempty"`
	Priority      int        `json:"priority,omitempty"`
	DueDate       *EpochTime `json:"dueDate,omitempty"`
	ProgressCount int        `json:"progressCount,omitempty"`
}

// ListTasksFilter narrows a task listing. Empty fields are not sent.
type ListTasksFilter struct {
	Status     string
	AssigneeID string
	TypeID     string
}
