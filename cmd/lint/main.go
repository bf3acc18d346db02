package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/config"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/linter"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/profiler"
)

func main() {
	file := flag.String("f", "", "Prompt template file")
	prompt := flag.String("p", "", "Inline prompt template")
	vars := flag.String("vars", "", "Template variables as JSON object")
	flag.Parse()

	if *file == "" && *prompt == "" {
		fmt.Fprintln(os.Stderr, "Usage: lint -f <file> | -p '<prompt>' [-vars '<json>']")
		flag.PrintDefaults()
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(*file, *prompt, *vars); err != nil {
		log.Error().Err(err).Msg("lint failed")
		os.Exit(1)
	}
}

func run(file, prompt, vars string) error {
	_ = godotenv.Load()

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		prompt = string(data)
	}

	variables := map[string]string{}
	if vars != "" {
		if err := json.Unmarshal([]byte(vars), &variables); err != nil {
			return fmt.Errorf("invalid -vars JSON: %w", err)
		}
	}

	guardrails, err := config.Load()
	if err != nil {
		return err
	}

	modelTable, err := profiler.LoadModelTable()
	if err != nil {
		return err
	}

	l := linter.New(guardrails.Linter, profiler.New(modelTable))
	result := l.Lint(prompt, variables)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.Passed {
		os.Exit(1)
	}
	return nil
}
