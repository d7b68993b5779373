package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/trai/pkg/coach"
	"github.com/go-go-golems/trai/pkg/coach/memstore"
	"github.com/go-go-golems/trai/pkg/events"
	"github.com/go-go-golems/trai/pkg/helpers"
	"github.com/go-go-golems/trai/pkg/inference/toolloop"
	"github.com/go-go-golems/trai/pkg/inference/tools"
	"github.com/go-go-golems/trai/pkg/prompt"
	"github.com/go-go-golems/trai/pkg/steps/ai/gemini"
	"github.com/go-go-golems/trai/pkg/steps/ai/settings"
	"github.com/go-go-golems/trai/pkg/turns"
)

const chatTopic = "chat"

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Send a message to the coach, backed by an in-memory demo profile",
		RunE:  runChat,
	}

	fs := cmd.Flags()
	fs.String("settings", "", "YAML file with chat and client settings")
	fs.String("model", "", "Model name")
	fs.Float64("temperature", 0, "Sampling temperature")
	fs.Float64("top-p", 0, "Nucleus sampling")
	fs.Int("max-output-tokens", 0, "Maximum output tokens per round")
	fs.String("thinking-effort", "", "Thinking effort (minimal, low, medium, high)")
	fs.String("api-key", "", "Backend API key (also GEMINI_API_KEY)")
	fs.String("base-url", "", "Backend base URL")
	fs.Bool("allow-local-base-url", false, "Accept an http or local network base URL")
	fs.Duration("timeout", 0, "Timeout of one streaming request")

	fs.Int("max-rounds", toolloop.DefaultMaxRounds, "Maximum tool rounds per message")
	fs.Bool("no-follow-up", false, "Do not ask for a message after a silent suggestion")
	fs.Int("max-parallel-tools", tools.DefaultToolConfig().MaxParallelTools, "Concurrent tool calls per round")
	fs.Duration("tool-timeout", tools.DefaultToolConfig().ExecutionTimeout, "Timeout of one tool call")
	fs.StringSlice("allowed-tools", nil, "Only offer these tools")
	fs.String("system-prompt", "", "Template file replacing the built-in system prompt")
	fs.Int("history-window", toolloop.DefaultHistoryWindow, "Earlier turns sent with each message")

	fs.String("image", "", "Attach an image to the first message")
	fs.Bool("interactive", false, "Read further messages from stdin")
	fs.Bool("render", false, "Render the reply as markdown when stdout is a terminal")
	fs.Bool("print-raw-events", false, "Dump every event as JSON to stderr")
	fs.String("output", "text", "Output format (text, json, yaml)")
	fs.String("metrics-addr", "", "Serve prometheus metrics on this address")

	return cmd
}

func loadStepSettings() (*settings.StepSettings, error) {
	ss := settings.NewStepSettings()
	if p := viper.GetString("settings"); p != "" {
		f, err := os.Open(p)
		if err != nil {
			return nil, errors.Wrap(err, "could not open settings")
		}
		defer f.Close()
		ss, err = settings.NewStepSettingsFromYAML(f)
		if err != nil {
			return nil, err
		}
	}

	if viper.IsSet("model") {
		ss.Chat.Model = viper.GetString("model")
	}
	if viper.IsSet("temperature") {
		t := viper.GetFloat64("temperature")
		ss.Chat.Temperature = &t
	}
	if viper.IsSet("top-p") {
		p := viper.GetFloat64("top-p")
		ss.Chat.TopP = &p
	}
	if viper.IsSet("max-output-tokens") {
		n := viper.GetInt("max-output-tokens")
		ss.Chat.MaxOutputTokens = &n
	}
	if viper.IsSet("thinking-effort") {
		e, err := settings.ParseThinkingEffort(viper.GetString("thinking-effort"))
		if err != nil {
			return nil, err
		}
		ss.Chat.ThinkingEffort = e
	}
	if viper.IsSet("api-key") {
		ss.Client.APIKey = viper.GetString("api-key")
	}
	if viper.IsSet("base-url") {
		ss.Client.BaseURL = viper.GetString("base-url")
	}
	if viper.IsSet("allow-local-base-url") {
		ss.Client.AllowLocalBaseURL = viper.GetBool("allow-local-base-url")
	}
	if viper.IsSet("timeout") {
		d := viper.GetDuration("timeout")
		ss.Client.Timeout = &d
	}

	if err := ss.Validate(); err != nil {
		return nil, err
	}
	if !gemini.IsGeminiModel(ss.Chat.Model) {
		log.Warn().Str("model", ss.Chat.Model).Msg("Model does not look like a Gemini model")
	}
	return ss, nil
}

func loadToolConfig() tools.ToolConfig {
	cfg := tools.DefaultToolConfig().
		WithMaxParallelTools(viper.GetInt("max-parallel-tools")).
		WithExecutionTimeout(viper.GetDuration("tool-timeout"))
	if allowed := viper.GetStringSlice("allowed-tools"); len(allowed) > 0 {
		cfg = cfg.WithAllowedTools(allowed)
	}
	return cfg
}

func loadLoopConfig() toolloop.LoopConfig {
	return toolloop.DefaultLoopConfig().
		WithMaxRounds(viper.GetInt("max-rounds")).
		WithSuggestionFollowUp(!viper.GetBool("no-follow-up"))
}

func loadAttachment(path string) (*toolloop.Attachment, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read image")
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return &toolloop.Attachment{MimeType: mimeType, Data: data}, nil
}

func loadPromptBuilder(path string) (*prompt.TemplateBuilder, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read system prompt")
	}
	return prompt.NewTemplateBuilder(string(b))
}

type chatOutput struct {
	format string
	render bool
	w      io.Writer
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	out := chatOutput{
		format: viper.GetString("output"),
		render: viper.GetBool("render") && isatty.IsTerminal(os.Stdout.Fd()),
		w:      os.Stdout,
	}
	switch out.format {
	case "text", "json", "yaml":
	default:
		return errors.Errorf("unknown output format %q", out.format)
	}

	interactive := viper.GetBool("interactive")
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" && !interactive {
		return errors.New("no message given, pass one as arguments or use --interactive")
	}
	attachment, err := loadAttachment(viper.GetString("image"))
	if err != nil {
		return err
	}

	ss, err := loadStepSettings()
	if err != nil {
		return err
	}
	client, err := gemini.NewClientFromSettings(ss)
	if err != nil {
		return err
	}

	store := memstore.NewDemo(time.Now())
	dispatcher, err := coach.NewToolbox(store).NewDispatcher(loadToolConfig())
	if err != nil {
		return err
	}

	loopOpts := []toolloop.Option{
		toolloop.WithTransport(client),
		toolloop.WithDispatcher(dispatcher),
		toolloop.WithChatSettings(ss.Chat),
		toolloop.WithLoopConfig(loadLoopConfig()),
	}
	if p := viper.GetString("system-prompt"); p != "" {
		b, err := loadPromptBuilder(p)
		if err != nil {
			return err
		}
		loopOpts = append(loopOpts, toolloop.WithPromptBuilder(b))
	}
	loop := toolloop.New(loopOpts...)

	routerOpts := []events.EventRouterOption{events.WithVerbose(viper.GetBool("verbose"))}
	if zerolog.GlobalLevel() <= zerolog.TraceLevel {
		routerOpts = append(routerOpts, events.WithLogger(helpers.NewWatermill(log.Logger)))
	}
	router, err := events.NewEventRouter(routerOpts...)
	if err != nil {
		return err
	}
	router.AddHandler("log", chatTopic, logEvent)
	if out.format == "text" && !out.render {
		router.AddHandler("printer", chatTopic, events.StepPrinterFunc("", out.w))
	}
	if viper.GetBool("print-raw-events") {
		router.AddHandler("raw-events", chatTopic, router.DumpRawEvents(os.Stderr))
	}

	session := toolloop.NewSession(loop,
		toolloop.WithEventSinks(router.Sink(chatTopic)),
		toolloop.WithWindow(viper.GetInt("history-window")),
		toolloop.WithFacts(func(ctx context.Context) (prompt.ContextualFacts, error) {
			return coach.ContextualFacts(ctx, store, time.Now())
		}),
	)

	log.Debug().
		Interface("settings", ss.GetMetadata()).
		Interface("tools", dispatcher.Config()).
		Msg("Starting chat")

	var metricsServer *http.Server
	if addr := viper.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	if metricsServer != nil {
		eg.Go(func() error {
			log.Info().Str("addr", metricsServer.Addr).Msg("Serving metrics")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	eg.Go(func() error {
		defer func() {
			_ = router.Close()
			if metricsServer != nil {
				_ = metricsServer.Shutdown(context.Background())
			}
		}()

		select {
		case <-router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}

		if message != "" {
			if err := out.send(ctx, session, message, attachment); err != nil {
				return err
			}
			attachment = nil
		}
		if !interactive {
			return nil
		}
		return out.repl(ctx, session, os.Stdin, attachment)
	})

	return eg.Wait()
}

// repl reads one message per line until EOF or "exit". "/history" prints the
// conversation so far. Failed runs are logged and the conversation continues.
func (o chatOutput) repl(ctx context.Context, session *toolloop.Session, r io.Reader, attachment *toolloop.Attachment) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(os.Stderr, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/history":
			turns.FprintHistory(os.Stderr, session.History(), turns.WithToolDetail(true))
			continue
		}

		err := o.send(ctx, session, line, attachment)
		attachment = nil
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Error().Err(err).Msg("Run failed")
		}
	}
}

func (o chatOutput) send(ctx context.Context, session *toolloop.Session, message string, attachment *toolloop.Attachment) error {
	res, err := session.Send(ctx, toolloop.RunRequest{
		Message:    message,
		Attachment: attachment,
		OnToolCallStarted: func(name string) {
			log.Debug().Str("tool", name).Msg("Calling tool")
		},
	})
	if res != nil {
		if perr := o.print(res); perr != nil {
			return perr
		}
	}
	return err
}

type recorded struct {
	Suggestions []toolloop.Suggestion `yaml:"suggestions,omitempty"`
	SideEffects []toolloop.SideEffect `yaml:"side_effects,omitempty"`
}

func (o chatOutput) print(res *toolloop.Result) error {
	switch o.format {
	case "json":
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(o.w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(res)
	}

	if !o.render {
		// the printer handler has already streamed everything
		return nil
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	rendered, err := r.Render(res.FinalText)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprint(o.w, rendered); err != nil {
		return err
	}

	if len(res.Suggestions) == 0 && len(res.SideEffects) == 0 {
		return nil
	}
	b, err := yaml.Marshal(recorded{Suggestions: res.Suggestions, SideEffects: res.SideEffects})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(o.w, "\n%s", b)
	return err
}

func logEvent(msg *message.Message) error {
	defer msg.Ack()
	e, err := events.NewEventFromJson(msg.Payload)
	if err != nil {
		log.Warn().Err(err).Str("message_id", msg.UUID).Msg("Could not decode event")
		return nil
	}
	log.Trace().Str("type", string(e.Type())).Str("message_id", msg.UUID).Msg("Event")
	return nil
}
