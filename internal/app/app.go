package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"skald/internal/chat"
	"skald/internal/config"
	"skald/internal/models"
	"skald/internal/pricing"
	"skald/internal/resolver"
	"skald/internal/services"
	"skald/internal/storage"
	"skald/internal/telemetry"
	"skald/internal/tokenizer"
	"skald/internal/wrapper"
)

// App wires the middleware stack: resolver, pricing, telemetry, provider,
// operations and their wrappers. One App is built per process and torn down
// with Close.
type App struct {
	Config     *config.Config
	Recorder   *telemetry.Recorder
	Resolver   resolver.Resolver
	Calculator *pricing.Calculator
	Provider   services.CompletionProvider
	Operations *services.Operations
	Tokens     tokenizer.Counter
	Registry   *wrapper.Registry

	executor *services.SQLExecutor
	wrappers map[string]*wrapper.Wrapper
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: wrapper.NewRegistry()}

	if err := a.initPricing(); err != nil {
		return nil, err
	}
	if err := a.initRecorder(); err != nil {
		return nil, err
	}
	if err := a.initResolver(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	if err := a.initProvider(ctx); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	counter, err := tokenizer.NewEstimator(cfg.Provider.DefaultModel)
	if err != nil {
		a.cleanupPartialInit()
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	a.Tokens = counter
	if err := a.initOperations(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	a.initWrappers()

	log.Debug("Application initialization complete.")
	return a, nil
}

// NewAppWithProvider assembles the stack around an already-built provider and
// token counter. It skips the environment-dependent provider construction,
// which also makes it the seam used by handler tests.
func NewAppWithProvider(cfg *config.Config, provider services.CompletionProvider, counter tokenizer.Counter) (*App, error) {
	a := &App{Config: cfg, Registry: wrapper.NewRegistry(), Provider: provider, Tokens: counter}

	if err := a.initPricing(); err != nil {
		return nil, err
	}
	if err := a.initRecorder(); err != nil {
		return nil, err
	}
	if err := a.initResolver(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	if err := a.initOperations(); err != nil {
		a.cleanupPartialInit()
		return nil, err
	}
	a.initWrappers()
	return a, nil
}

func (a *App) initPricing() error {
	table, err := pricing.NewPriceTable(a.Config.Pricing)
	if err != nil {
		return fmt.Errorf("init pricing: %w", err)
	}
	a.Calculator = pricing.NewCalculator(table)
	return nil
}

func (a *App) initRecorder() error {
	rec, err := telemetry.NewRecorder(a.Config.Telemetry.LogFile)
	if err != nil {
		return fmt.Errorf("init telemetry recorder: %w", err)
	}
	a.Recorder = rec
	return nil
}

func (a *App) initResolver() error {
	store, err := storage.NewMinioStore(a.Config)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}
	// A typed nil must not reach the resolver as a non-nil interface.
	if store == nil {
		a.Resolver = resolver.New(nil)
		return nil
	}
	a.Resolver = resolver.New(store)
	return nil
}

func (a *App) initProvider(ctx context.Context) error {
	cfg := a.Config
	var err error
	switch cfg.Provider.Name {
	case "openai":
		a.Provider, err = services.NewOpenAIProvider(cfg.Provider.OpenAIAPIKey)
	case "anthropic":
		a.Provider, err = services.NewAnthropicProvider(cfg.Provider.AnthropicAPIKey, cfg.Provider.MaxTokens)
	case "gemini":
		counter, terr := tokenizer.NewEstimator(cfg.Provider.DefaultModel)
		if terr != nil {
			return fmt.Errorf("init tokenizer: %w", terr)
		}
		a.Provider, err = services.NewGeminiProvider(ctx, cfg.Provider.GeminiAPIKey, counter)
	default:
		return fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
	if err != nil {
		return fmt.Errorf("init %s provider: %w", cfg.Provider.Name, err)
	}
	log.Infof("Completion provider initialized: %s (model: %s)", a.Provider.Name(), cfg.Provider.DefaultModel)
	return nil
}

func (a *App) initOperations() error {
	cfg := a.Config
	a.Operations = services.NewOperations(a.Provider, nil,
		cfg.Provider.DefaultModel, cfg.Chunking.MaxTokens, cfg.Chunking.Overlap)

	if cfg.Query.DSN != "" {
		exec, err := services.NewSQLExecutor(cfg.Query.Driver, cfg.Query.DSN)
		if err != nil {
			return fmt.Errorf("init query executor: %w", err)
		}
		a.executor = exec
	}
	return nil
}

// initWrappers binds every domain operation to the shared middleware under
// its routing name.
func (a *App) initWrappers() {
	ops := map[string]wrapper.Operation{
		"summarize": a.Operations.Summarize(),
		"extract":   a.Operations.ExtractEntities(),
		"mask":      a.Operations.MaskData(),
		"generate":  a.Operations.GenerateText(),
		"grammar":   a.Operations.CorrectGrammar(),
		"chat":      a.Operations.ChatTurn(),
		"csv":       a.Operations.QueryCSV(a.Tokens),
	}
	var queryExec services.QueryExecutor
	if a.executor != nil {
		queryExec = a.executor
	}
	ops["query"] = a.Operations.QueryData(queryExec)

	a.wrappers = make(map[string]*wrapper.Wrapper, len(ops))
	for name, op := range ops {
		a.wrappers[name] = wrapper.New(name, op, a.Resolver, a.Calculator, a.Recorder)
	}
}

// Wrapper returns the wrapped operation registered under name.
func (a *App) Wrapper(name string) (*wrapper.Wrapper, bool) {
	w, ok := a.wrappers[name]
	return w, ok
}

// OperationNames lists the registered operation names.
func (a *App) OperationNames() []string {
	names := make([]string, 0, len(a.wrappers))
	for name := range a.wrappers {
		names = append(names, name)
	}
	return names
}

// NewChatSession builds an Uninitialized session over the wrapped
// conversational operation.
func (a *App) NewChatSession() *chat.Session {
	w := a.wrappers["chat"]
	turn := func(ctx context.Context, userInput string, history []models.ChatMessage) models.ResultEnvelope {
		return w.Call(ctx, userInput, wrapper.Options{History: history})
	}
	return chat.NewSession(turn, a.Config.Chat.MaxTurns, a.Config.Chat.MaxMessageLength, a.Tokens)
}

func (a *App) Close() error {
	var firstErr error
	if err := a.Registry.CloseAll(); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.executor != nil {
		if err := a.executor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if closer, ok := a.Provider.(interface{ Close() error }); ok && closer != nil {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Recorder != nil {
		if err := a.Recorder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *App) cleanupPartialInit() {
	if a.Recorder != nil {
		_ = a.Recorder.Close()
	}
	if a.executor != nil {
		_ = a.executor.Close()
	}
	if closer, ok := a.Provider.(interface{ Close() error }); ok && closer != nil {
		_ = closer.Close()
	}
}
