package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/querysmith/querysmith/internal/adapters/llm"
	"github.com/querysmith/querysmith/internal/adapters/sqldb"
	"github.com/querysmith/querysmith/internal/config"
	"github.com/querysmith/querysmith/internal/core/domain"
	"github.com/querysmith/querysmith/internal/core/services"
)

const exampleQuestion = "How many albums are in the database?"

func main() {
	// Logs go to stderr so answers on stdout stay clean for piping.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if len(os.Args) > 1 && os.Args[1] == "doctor" {
		if err := doctor(); err != nil {
			fmt.Fprintln(os.Stderr, "doctor:", err)
			os.Exit(1)
		}
		return
	}

	question := flag.String("q", "", "answer one question and exit")
	file := flag.String("f", "", "answer one question per line from a file")
	jsonOut := flag.Bool("json", false, "machine-readable output")
	history := flag.Int("history", 0, "print the last n runs and exit")
	seedDemo := flag.Bool("seed-demo", false, "create the demo music schema before starting")
	flag.Parse()

	if err := run(logger, *question, *file, *jsonOut, *history, *seedDemo); err != nil {
		logger.Error("querysmith failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, question, file string, jsonOut bool, history int, seedDemo bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if seedDemo {
		cfg.SeedDemo = true
	}

	if history > 0 {
		return printHistory(ctx, cfg, history, jsonOut)
	}

	target, err := sqldb.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to open target database: %w", err)
	}
	defer target.Close()

	if cfg.SeedDemo {
		if err := sqldb.SeedDemo(ctx, target); err != nil {
			return fmt.Errorf("failed to seed demo schema: %w", err)
		}
	}

	state, err := sqldb.Open(ctx, "sqlite", cfg.StateDSN)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer state.Close()

	runStore, err := sqldb.NewRunStore(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to init run store: %w", err)
	}

	provider, err := llm.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to build llm provider: %w", err)
	}

	catalog := sqldb.NewCatalog(target)
	executor := sqldb.NewExecutor(target)
	validator := services.NewQueryValidator()
	advisor := services.NewErrorRecoveryAdvisor()

	registry := domain.NewToolRegistry()
	if err := services.RegisterSQLTools(registry, catalog, executor, validator, advisor, cfg.QueryTimeout); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	agent := services.NewReActAgent(logger, provider, registry, cfg.MaxIterations, cfg.LLMTimeout)
	facade := services.NewAgentService(logger, agent, runStore, nil)

	switch {
	case question != "":
		return printResult(facade.Query(ctx, question), jsonOut)
	case file != "":
		questions, err := readQuestions(file)
		if err != nil {
			return err
		}
		for _, result := range facade.QueryMany(ctx, questions) {
			if err := printResult(result, jsonOut); err != nil {
				return err
			}
		}
		return nil
	default:
		return repl(ctx, facade, jsonOut)
	}
}

// repl answers questions from stdin until "exit" or EOF. The example
// question runs first as a smoke test of the whole stack.
func repl(ctx context.Context, facade *services.AgentService, jsonOut bool) error {
	fmt.Printf("question: %s\n", exampleQuestion)
	if err := printResult(facade.Query(ctx, exampleQuestion), jsonOut); err != nil {
		return err
	}

	fmt.Println(`Ask about the database. Type "exit" to quit.`)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") {
			return nil
		}
		if err := printResult(facade.Query(ctx, line), jsonOut); err != nil {
			return err
		}
	}
}

func printResult(result domain.AgentResult, jsonOut bool) error {
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(result)
	}
	if result.Status == domain.StatusError {
		fmt.Printf("error: %s\n", result.Answer)
		return nil
	}
	fmt.Println(result.Answer)
	return nil
}

// readQuestions loads one question per line; blank lines and # comments
// are skipped.
func readQuestions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question file: %w", err)
	}
	defer f.Close()

	var questions []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions in %s", path)
	}
	return questions, nil
}

func printHistory(ctx context.Context, cfg *config.Config, n int, jsonOut bool) error {
	state, err := sqldb.Open(ctx, "sqlite", cfg.StateDSN)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer state.Close()

	runStore, err := sqldb.NewRunStore(ctx, state)
	if err != nil {
		return fmt.Errorf("failed to init run store: %w", err)
	}

	runs, err := runStore.ListRuns(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-7s  %2d iter  %6dms  %s\n",
			r.StartedAt.Format(time.RFC3339), r.Status, r.Iterations, r.DurationMs, r.Question)
	}
	return nil
}

// doctor checks that the configured model backend is reachable by sending
// it a fixed prompt. Secrets are masked in the output.
func doctor() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Printf("provider:  %s\n", cfg.Provider)
	fmt.Printf("model:     %s\n", cfg.ModelID)
	switch cfg.Provider {
	case "watsonx":
		fmt.Printf("api key:   %s\n", config.Mask(cfg.Credentials.WatsonxAPIKey))
		fmt.Printf("project:   %s\n", cfg.Credentials.WatsonxProjectID)
		fmt.Printf("url:       %s\n", cfg.Credentials.WatsonxURL)
	case "openai":
		fmt.Printf("api key:   %s\n", config.Mask(cfg.Credentials.OpenAIAPIKey))
	case "anthropic":
		fmt.Printf("api key:   %s\n", config.Mask(cfg.Credentials.AnthropicAPIKey))
	case "ollama":
		fmt.Printf("host:      %s\n", cfg.Credentials.OllamaHost)
	}

	provider, err := llm.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout)
	defer cancel()

	start := time.Now()
	reply, err := provider.GenerateText(ctx, "Hello")
	if err != nil {
		return fmt.Errorf("model backend unreachable: %w", err)
	}

	fmt.Printf("reachable: yes (%s)\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("reply:     %s\n", strings.TrimSpace(reply))
	return nil
}
