// Package toolexec registers and executes structured tools for the agent.
//
// Invariants:
// - Tool names are unique.
// - Parameters are schema-validated before the handler runs; invalid
//   arguments never cause side effects.
// - Handlers observe the execution context's cancellation and deadline;
//   Execute returns promptly when either fires.
//
// Usage:
//
//	exec := toolexec.New()
//	_ = exec.Register(toolexec.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters:  []toolexec.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler:     func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return params["text"], nil },
//	})
//	result := exec.Execute(ctx, "echo", map[string]interface{}{"text": "hi"}, nil)
package toolexec
