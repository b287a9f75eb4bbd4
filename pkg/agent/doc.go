// Package agent runs the model-call/tool-call loop for one conversation
// turn.
//
// A turn moves through a small state machine: the runner builds a
// context window, streams a model response, executes any requested tool
// calls concurrently, feeds the results back, and repeats until the
// model answers without tools or an iteration cap is hit. Turns for the
// same session are serialized through a command queue lane; separate
// sessions run independently.
//
// Invariants:
// - Tool-result messages are appended in the order the model requested
//   the calls, regardless of completion order.
// - Tool and validation failures become messages fed back to the model;
//   they never terminate the turn by themselves.
// - Terminal failures surface as *AgentError through the hooks, carrying
//   the span active at the time.
// - Cancellation is observed between stream chunks and at tool
//   boundaries and ends the turn in StateCancelled.
//
// Usage:
//
//	runner, _ := agent.NewRunner(agent.Config{
//		Store:    store,
//		Executor: executor,
//		Queue:    queue,
//		Profiles: cfg.AI.Profiles,
//		Agent:    cfg.Agent,
//		Context:  cfg.Context,
//		Tools:    cfg.Tools,
//	})
//	result, err := runner.RunTurn(ctx, agent.RunParams{Prompt: "hello"})
package agent
