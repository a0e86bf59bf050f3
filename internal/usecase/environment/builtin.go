package environment

import (
	"context"
	"reflect"
	"strings"

	"aihub/internal/adapter/tool"
)

// registerBuiltinTools gives the model access to the environment itself.
// User tools registered later under the same names replace these.
func (e *Environment) registerBuiltinTools() {
	r := e.tools

	r.Register(tool.NewDocTool("list_files", `Lists the files and directories at a path in the working directory.
path: directory relative to the working directory, "." for the root`,
		[]tool.Param{tool.Optional("path", reflect.String, "", ".")},
		func(_ context.Context, args tool.Args) (any, error) {
			names, err := e.ListFiles(args.String("path"))
			if err != nil {
				return nil, err
			}
			return strings.Join(names, "\n"), nil
		}))

	r.Register(tool.NewDocTool("read_file", `Reads a file from the working directory.
filename: file path relative to the working directory`,
		[]tool.Param{tool.Required("filename", reflect.String, "")},
		func(_ context.Context, args tool.Args) (any, error) {
			if err := tool.RequireField("filename", args.String("filename")); err != nil {
				return nil, err
			}
			return e.ReadFile(args.String("filename"))
		}))

	r.Register(tool.NewDocTool("write_file", `Writes content to a file in the working directory, replacing it if it exists.
filename: file path relative to the working directory
content: the text to write`,
		[]tool.Param{
			tool.Required("filename", reflect.String, ""),
			tool.Required("content", reflect.String, ""),
		},
		func(_ context.Context, args tool.Args) (any, error) {
			if err := tool.RequireField("filename", args.String("filename")); err != nil {
				return nil, err
			}
			if err := e.WriteFile(args.String("filename"), args.String("content")); err != nil {
				return nil, err
			}
			return "Successfully wrote " + args.String("filename"), nil
		}))

	r.Register(tool.NewDocTool("exec_command", `Executes a command in the working directory and returns its output. Long-running or interactive programs are killed after a short timeout.
command: the command line to run`,
		[]tool.Param{tool.Required("command", reflect.String, "")},
		func(ctx context.Context, args tool.Args) (any, error) {
			if err := tool.RequireField("command", args.String("command")); err != nil {
				return nil, err
			}
			return e.ExecCommand(ctx, args.String("command"))
		}))

	r.Register(tool.NewDocTool("list_terminal_commands", `Lists the commands executed so far in this run with their results.`,
		nil,
		func(context.Context, tool.Args) (any, error) {
			return e.ListTerminalCommands()
		}))

	r.Register(tool.NewDocTool("query_vector_store", `Searches a vector store for chunks relevant to a query.
vector_store_id: identifier of the vector store
query: the search text`,
		[]tool.Param{
			tool.Required("vector_store_id", reflect.String, ""),
			tool.Required("query", reflect.String, ""),
		},
		func(ctx context.Context, args tool.Args) (any, error) {
			return e.QueryVectorStore(ctx, args.String("vector_store_id"), args.String("query"))
		}))

	r.Register(tool.NewDocTool("request_user_input", `Ends the agent's turn and waits for the user to reply.`,
		nil,
		func(context.Context, tool.Args) (any, error) {
			return nil, e.RequestUserInput()
		}))

	r.Register(tool.NewDocTool("mark_done", `Marks the task as complete and ends the run.`,
		nil,
		func(context.Context, tool.Args) (any, error) {
			return nil, e.MarkDone()
		}))
}
