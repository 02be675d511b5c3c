package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyemirov/taskdeck/internal/taskapi"
)

func newTaskCommand() *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Work with tasks",
	}
	taskCmd.AddCommand(newTaskListCommand())
	taskCmd.AddCommand(newTaskCreateCommand())
	taskCmd.AddCommand(newTaskUpdateCommand())
	taskCmd.AddCommand(newTaskDoneCommand())
	taskCmd.AddCommand(newTaskDeleteCommand())
	return taskCmd
}

func newTaskListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(command *cobra.Command, arguments []string) error {
			status, _ := command.Flags().GetString("status")
			assigneeID, _ := command.Flags().GetString("assignee")
			typeID, _ := command.Flags().GetString("type")
			return withSession(command, func(ctx context.Context, env *environment) error {
				tasks, listErr := env.tasks.ListTasks(ctx, taskapi.ListTasksFilter{
					Status:     status,
					AssigneeID: assigneeID,
					TypeID:     typeID,
				})
				if listErr != nil {
					return listErr
				}
				now := time.Now().UTC()
				for _, task := range tasks {
					marker := " "
					if taskapi.IsOverdue(task, now) {
						marker = "!"
					}
					dueDate := "-"
					if !task.DueDate.IsZero() {
						dueDate = taskapi.FormatDate(task.DueDate.Time)
					}
					command.Printf("%s %-8s %-6s p%d due=%-16s %s (%s)\n",
						marker, task.ID, task.Status, task.Priority, dueDate, task.Title, task.AssigneeID)
				}
				command.Printf("%d task(s)\n", len(tasks))
				return nil
			})
		},
	}
	listCmd.Flags().String("status", "", "Filter by status (TODO, DOING, DONE)")
	listCmd.Flags().String("assignee", "", "Filter by assignee id")
	listCmd.Flags().String("type", "", "Filter by task type id")
	return listCmd
}

func newTaskCreateCommand() *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(command *cobra.Command, arguments []string) error {
			title, _ := command.Flags().GetString("title")
			typeID, _ := command.Flags().GetString("type")
			assigneeID, _ := command.Flags().GetString("assignee")
			salesPersonID, _ := command.Flags().GetString("sales")
			description, _ := command.Flags().GetString("description")
			priority, _ := command.Flags().GetInt("priority")
			dueRaw, _ := command.Flags().GetString("due")
			return withSession(command, func(ctx context.Context, env *environment) error {
				input := taskapi.CreateTaskInput{
					TypeID:        typeID,
					AssigneeID:    assigneeID,
					SalesPersonID: salesPersonID,
					Title:         title,
					Description:   description,
					Priority:      priority,
				}
				if dueRaw != "" {
					dueDate, parseErr := time.Parse(time.RFC3339, dueRaw)
					if parseErr != nil {
						return parseErr
					}
					epochDue := taskapi.NewEpochTime(dueDate)
					input.DueDate = &epochDue
				}
				taskID, createErr := env.tasks.CreateTask(ctx, input)
				if createErr != nil {
					return createErr
				}
				command.Printf("created task %s\n", taskID)
				return nil
			})
		},
	}
	createCmd.Flags().String("title", "", "Task title")
	createCmd.Flags().String("type", "", "Task type id")
	createCmd.Flags().String("assignee", "", "Assignee user id")
	createCmd.Flags().String("sales", "", "Sales person id")
	createCmd.Flags().String("description", "", "Task description")
	createCmd.Flags().Int("priority", 0, "Task priority")
	createCmd.Flags().String("due", "", "Due date in RFC3339, for example 2026-09-30T17:00:00Z")
	_ = createCmd.MarkFlagRequired("title")
	_ = createCmd.MarkFlagRequired("type")
	_ = createCmd.MarkFlagRequired("assignee")
	return createCmd
}

func newTaskUpdateCommand() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			status, _ := command.Flags().GetString("status")
			title, _ := command.Flags().GetString("title")
			assigneeID, _ := command.Flags().GetString("assignee")
			priority, _ := command.Flags().GetInt("priority")
			progress, _ := command.Flags().GetInt("progress")
			dueRaw, _ := command.Flags().GetString("due")
			return withSession(command, func(ctx context.Context, env *environment) error {
				input := taskapi.UpdateTaskInput{
					Status:        status,
					Title:         title,
					AssigneeID:    assigneeID,
					Priority:      priority,
					ProgressCount: progress,
				}
				if dueRaw != "" {
					dueDate, parseErr := time.Parse(time.RFC3339, dueRaw)
					if parseErr != nil {
						return parseErr
					}
					epochDue := taskapi.NewEpochTime(dueDate)
					input.DueDate = &epochDue
				}
				if updateErr := env.tasks.UpdateTask(ctx, arguments[0], input); updateErr != nil {
					return updateErr
				}
				command.Printf("updated task %s\n", arguments[0])
				return nil
			})
		},
	}
	updateCmd.Flags().String("status", "", "New status (TODO, DOING, DONE)")
	updateCmd.Flags().String("title", "", "New title")
	updateCmd.Flags().String("assignee", "", "New assignee user id")
	updateCmd.Flags().Int("priority", 0, "New priority")
	updateCmd.Flags().Int("progress", 0, "Progress count")
	updateCmd.Flags().String("due", "", "New due date in RFC3339")
	return updateCmd
}

func newTaskDoneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "done <task-id>",
		Short: "Mark a task as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				input := taskapi.UpdateTaskInput{Status: taskapi.StatusDone}
				if updateErr := env.tasks.UpdateTask(ctx, arguments[0], input); updateErr != nil {
					return updateErr
				}
				command.Printf("task %s done\n", arguments[0])
				return nil
			})
		},
	}
}

func newTaskDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				if deleteErr := env.tasks.DeleteTask(ctx, arguments[0]); deleteErr != nil {
					return deleteErr
				}
				command.Printf("deleted task %s\n", arguments[0])
				return nil
			})
		},
	}
}

func newTaskTypeCommand() *cobra.Command {
	typeCmd := &cobra.Command{
		Use:   "tasktype",
		Short: "Work with task types",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List task types",
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				taskTypes, listErr := env.tasks.ListTaskTypes(ctx)
				if listErr != nil {
					return listErr
				}
				for _, taskType := range taskTypes {
					command.Printf("%-8s %-20s %s\n", taskType.ID, taskType.Name, taskType.ColorCode)
				}
				return nil
			})
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task type",
		RunE: func(command *cobra.Command, arguments []string) error {
			name, _ := command.Flags().GetString("name")
			colorCode, _ := command.Flags().GetString("color")
			return withSession(command, func(ctx context.Context, env *environment) error {
				taskTypeID, createErr := env.tasks.CreateTaskType(ctx, taskapi.TaskType{Name: name, ColorCode: colorCode})
				if createErr != nil {
					return createErr
				}
				command.Printf("created task type %s\n", taskTypeID)
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Task type name")
	createCmd.Flags().String("color", "", "Display color code, for example #1890ff")
	_ = createCmd.MarkFlagRequired("name")

	deleteCmd := &cobra.Command{
		Use:   "delete <type-id>",
		Short: "Delete a task type",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				if deleteErr := env.tasks.DeleteTaskType(ctx, arguments[0]); deleteErr != nil {
					return deleteErr
				}
				command.Printf("deleted task type %s\n", arguments[0])
				return nil
			})
		},
	}

	typeCmd.AddCommand(listCmd, createCmd, deleteCmd)
	return typeCmd
}

func newSalesCommand() *cobra.Command {
	salesCmd := &cobra.Command{
		Use:   "sales",
		Short: "Work with the sales roster",
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sales persons",
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				salesPersons, listErr := env.tasks.ListSalesPersons(ctx)
				if listErr != nil {
					return listErr
				}
				for _, salesPerson := range salesPersons {
					command.Printf("%-8s %-20s %s\n", salesPerson.ID, salesPerson.Name, salesPerson.Phone)
				}
				return nil
			})
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Add a sales person",
		RunE: func(command *cobra.Command, arguments []string) error {
			name, _ := command.Flags().GetString("name")
			phone, _ := command.Flags().GetString("phone")
			return withSession(command, func(ctx context.Context, env *environment) error {
				salesPersonID, createErr := env.tasks.CreateSalesPerson(ctx, taskapi.SalesPerson{Name: name, Phone: phone})
				if createErr != nil {
					return createErr
				}
				command.Printf("created sales person %s\n", salesPersonID)
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Sales person name")
	createCmd.Flags().String("phone", "", "Contact phone number")
	_ = createCmd.MarkFlagRequired("name")

	deleteCmd := &cobra.Command{
		Use:   "delete <sales-id>",
		Short: "Remove a sales person",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return withSession(command, func(ctx context.Context, env *environment) error {
				if deleteErr := env.tasks.DeleteSalesPerson(ctx, arguments[0]); deleteErr != nil {
					return deleteErr
				}
				command.Printf("deleted sales person %s\n", arguments[0])
				return nil
			})
		},
	}

	salesCmd.AddCommand(listCmd, createCmd, deleteCmd)
	return salesCmd
}
