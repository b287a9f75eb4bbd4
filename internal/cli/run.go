package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harun/veda/internal/config"
	"github.com/harun/veda/internal/logger"
	"github.com/harun/veda/internal/tracing"
	"github.com/harun/veda/pkg/agent"
	"github.com/harun/veda/pkg/commandqueue"
	"github.com/harun/veda/pkg/coretools"
	"github.com/harun/veda/pkg/history"
	"github.com/harun/veda/pkg/session"
	"github.com/harun/veda/pkg/toolexec"
)

var (
	runSessionID string
	runWorkDir   string
	runTools     []string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a single agent turn",
	Long: `Run one conversational turn against the configured model.
The response streams to stdout. Pass --session to continue an earlier
conversation; without it a new session is created and its id printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTurn,
}

func init() {
	runCmd.Flags().StringVarP(&runSessionID, "session", "s", "", "session id to resume")
	runCmd.Flags().StringVarP(&runWorkDir, "workdir", "w", "", "workspace directory for tools (default: current directory)")
	runCmd.Flags().StringSliceVarP(&runTools, "tools", "t", nil, "restrict the tools exposed to the model")
	rootCmd.AddCommand(runCmd)
}

func runTurn(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logger.Config{
		Level:     logLevel,
		File:      cfg.Logging.File,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	}
	lg, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	store, err := session.NewStore(session.Config{
		Dir:         cfg.Session.Dir,
		MaxSessions: cfg.Session.MaxSessions,
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}

	queue := commandqueue.New()
	defer queue.Close()

	executor := toolexec.New()
	workDir := runWorkDir
	if workDir == "" {
		if cfg.WorkspacePath != "" {
			workDir = cfg.WorkspacePath
		} else if cwd, err := os.Getwd(); err == nil {
			workDir = cwd
		}
	}
	if err := coretools.Register(executor, coretools.Options{WorkspaceRoot: workDir}); err != nil {
		return fmt.Errorf("failed to register core tools: %w", err)
	}

	runner, err := agent.NewRunner(agent.Config{
		Store:    store,
		Executor: executor,
		Queue:    queue,
		Hooks:    &consoleHooks{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()},
		Logger:   lg.GetZerolog(),
		Agent:    cfg.Agent,
		Context:  cfg.Context,
		Tools:    cfg.Tools,
		Profiles: cfg.AI.Profiles,
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	result, err := runner.RunTurn(cmd.Context(), agent.RunParams{
		SessionID:  runSessionID,
		Prompt:     args[0],
		WorkingDir: workDir,
		Tools:      runTools,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout())
	if runSessionID == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", result.SessionKey)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d in / %d out\n",
		result.Usage.InputTokens, result.Usage.OutputTokens)

	return nil
}

// consoleHooks streams the turn to the terminal: response text to
// stdout, tool activity and hints to stderr.
type consoleHooks struct {
	agent.NoopHooks
	out io.Writer
	err io.Writer
}

func (h *consoleHooks) OnStreamChunk(span tracing.SpanContext, chunk agent.StreamChunk) {
	fmt.Fprint(h.out, chunk.Text)
}

func (h *consoleHooks) OnToolCallStart(span tracing.SpanContext, call history.ToolCall) {
	fmt.Fprintf(h.err, "\n> %s(%s)\n", call.Name, summarizeParams(call.Parameters))
}

func (h *consoleHooks) OnToolCallEnd(span tracing.SpanContext, call history.ToolCall, result toolexec.Result) {
	if !result.OK() {
		fmt.Fprintf(h.err, "> %s failed: %s\n", call.Name, result.Error)
	}
}

func (h *consoleHooks) OnSpinnerHint(span tracing.SpanContext, hint string) {
	fmt.Fprintf(h.err, "%s\n", hint)
}

func summarizeParams(params map[string]interface{}) string {
	parts := make([]string, 0, len(params))
	for key, value := range params {
		parts = append(parts, fmt.Sprintf("%s=%v", key, value))
	}
	joined := strings.Join(parts, ", ")
	if len(joined) > 120 {
		joined = joined[:117] + "..."
	}
	return joined
}
