package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ldi/tempo/internal/engine"
)

// NewServer creates a new MCP server exposing the task timer.
func NewServer(eng *engine.Engine) *server.MCPServer {
	s := server.NewMCPServer("Tempo", "0.1.0")

	// Task Management
	s.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Create a new timed task for today."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithNumber("hours", mcp.Description("Time budget hours")),
		mcp.WithNumber("minutes", mcp.Description("Time budget minutes")),
		mcp.WithNumber("seconds", mcp.Description("Time budget seconds")),
	), createTaskHandler(eng))

	s.AddTool(mcp.NewTool("start_task",
		mcp.WithDescription("Start a pending task's countdown."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), startTaskHandler(eng))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark an active task as done. A task whose timer already expired resolves as failed."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), completeTaskHandler(eng))

	s.AddTool(mcp.NewTool("reschedule_task",
		mcp.WithDescription("Retry a failed task with double the original time budget."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), rescheduleTaskHandler(eng))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a pending task that has not been started."),
		mcp.WithString("id", mcp.Description("Task ID"), mcp.Required()),
	), deleteTaskHandler(eng))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List today's tasks."),
	), listTasksHandler(eng))

	// History and Stats
	s.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Get per-title completion history."),
	), getHistoryHandler(eng))

	s.AddTool(mcp.NewTool("get_suggestions",
		mcp.WithDescription("Suggest previously completed task titles matching a query."),
		mcp.WithString("query", mcp.Description("Search text (min 2 chars)"), mcp.Required()),
	), getSuggestionsHandler(eng))

	s.AddTool(mcp.NewTool("rename_history",
		mcp.WithDescription("Rename a history entry. The new title replaces any existing entry under that name."),
		mcp.WithString("from", mcp.Description("Current title"), mcp.Required()),
		mcp.WithString("to", mcp.Description("New title"), mcp.Required()),
	), renameHistoryHandler(eng))

	s.AddTool(mcp.NewTool("get_daily_stats",
		mcp.WithDescription("Get the current score, completion rate, and archived daily stats."),
	), getDailyStatsHandler(eng))

	s.AddTool(mcp.NewTool("reset_all",
		mcp.WithDescription("Erase all tasks, history, stats, and score. Pass confirm='RESET' to proceed."),
		mcp.WithString("confirm", mcp.Description("Must be the literal string RESET"), mcp.Required()),
	), resetAllHandler(eng))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func createTaskHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")
		hours := mcp.ParseInt(request, "hours", 0)
		minutes := mcp.ParseInt(request, "minutes", 0)
		seconds := mcp.ParseInt(request, "seconds", 0)

		task, err := eng.CreateTask(title, hours*3600+minutes*60+seconds)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(task)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func startTaskHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		if eng.Task(id) == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID '%s' not found", id)), nil
		}

		eng.StartTask(id)
		return taskResult(eng, id)
	}
}

func completeTaskHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		if eng.Task(id) == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID '%s' not found", id)), nil
		}

		eng.CompleteTask(id)
		return taskResult(eng, id)
	}
}

func rescheduleTaskHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		if eng.Task(id) == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID '%s' not found", id)), nil
		}

		replacement := eng.RescheduleTask(id)
		if replacement == nil {
			return mcp.NewToolResultError("Task cannot be rescheduled: it must be failed and not previously rescheduled"), nil
		}

		data, err := json.Marshal(replacement)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func deleteTaskHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		if eng.Task(id) == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Task with ID '%s' not found", id)), nil
		}

		eng.DeleteTask(id)
		if eng.Task(id) != nil {
			return mcp.NewToolResultError("Task cannot be deleted: only pending tasks that were never started can be removed"), nil
		}
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func listTasksHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(map[string]interface{}{"tasks": eng.Tasks()})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func getHistoryHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(map[string]interface{}{"history": eng.History()})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func getSuggestionsHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := mcp.ParseString(request, "query", "")

		data, err := json.Marshal(map[string]interface{}{"suggestions": eng.Suggestions(query)})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func renameHistoryHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		from := mcp.ParseString(request, "from", "")
		to := mcp.ParseString(request, "to", "")

		if _, ok := eng.History()[from]; !ok {
			return mcp.NewToolResultError(fmt.Sprintf("No history entry named '%s'", from)), nil
		}
		if to == "" {
			return mcp.NewToolResultError("New title must not be empty"), nil
		}

		eng.RenameHistory(from, to)
		return mcp.NewToolResultText(fmt.Sprintf("History entry '%s' renamed to '%s'", from, to)), nil
	}
}

func getDailyStatsHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rate, attempts := eng.CompletionRate()
		data, err := json.Marshal(map[string]interface{}{
			"score":           eng.Score(),
			"completion_rate": rate,
			"total_attempts":  attempts,
			"daily_stats":     eng.DailyStats(),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func resetAllHandler(eng *engine.Engine) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if confirm := mcp.ParseString(request, "confirm", ""); confirm != "RESET" {
			return mcp.NewToolResultError("Refusing to reset: pass confirm='RESET' to erase all data"), nil
		}

		eng.ResetAll()
		return mcp.NewToolResultText("All tasks, history, and stats erased"), nil
	}
}

func taskResult(eng *engine.Engine, id string) (*mcp.CallToolResult, error) {
	task := eng.Task(id)
	data, err := json.Marshal(task)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
