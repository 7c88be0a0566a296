// Command streamprobe runs one turn against a configured provider and
// prints the normalized event stream as it arrives. It is the quickest way
// to verify a provider endpoint, credential, and wire API end to end:
//
//	streamprobe -provider gemini -model gemini-2.5-pro "explain SSE framing"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/ce-data-e/opencodex/core/client"
	"github.com/ce-data-e/opencodex/core/config"
	"github.com/ce-data-e/opencodex/providers/ai"
	"github.com/ce-data-e/opencodex/providers/observability"
	"github.com/ce-data-e/opencodex/providers/observability/slogobs"
)

func main() {
	providerName := flag.String("provider", "openai", "provider key from the config file")
	model := flag.String("model", "gpt-5", "model to run the turn against")
	configPath := flag.String("config", defaultConfigPath(), "path to the TOML config file")
	instructions := flag.String("instructions", "", "system instructions for the turn")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: streamprobe [flags] <prompt>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	observer := slogobs.New(slogobs.WithLevel(level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.ContextWithObserver(ctx, observer)

	if err := run(ctx, *configPath, *providerName, *model, *instructions, strings.Join(flag.Args(), " ")); err != nil {
		observer.Error(ctx, "turn failed", observability.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, providerName, model, instructions, promptText string) error {
	fileConfig, err := config.Load(configPath)
	if err != nil {
		return err
	}

	dispatcher := client.NewDispatcher(
		fileConfig.ProviderRegistry(),
		client.WithFamilies(fileConfig.FamilyRegistry()),
	)

	prompt := ai.Prompt{
		Model:        model,
		Instructions: instructions,
		Items:        []ai.Item{ai.NewMessage(ai.RoleUser, promptText)},
	}

	observer := observability.ObserverFromContext(ctx)
	_, span := slogSpan(ctx, observer)
	defer span.End()
	ctx = observability.ContextWithSpan(ctx, span)

	stream, err := dispatcher.Stream(ctx, providerName, prompt)
	if err != nil {
		return err
	}

	for event, streamErr := range stream.Iter() {
		if streamErr != nil {
			return streamErr
		}
		printEvent(event)
	}
	fmt.Println()
	return nil
}

func slogSpan(ctx context.Context, observer observability.Observer) (context.Context, observability.Span) {
	return observer.StartSpan(ctx, observability.SpanLLMStream)
}

func printEvent(event ai.StreamEvent) {
	switch event.Type {
	case ai.StreamEventTextDelta:
		fmt.Print(event.Text)
	case ai.StreamEventReasoningDelta:
		if event.Reasoning != "" {
			fmt.Fprintf(os.Stderr, "[thinking] %s\n", event.Reasoning)
		}
	case ai.StreamEventFunctionCallStart:
		fmt.Fprintf(os.Stderr, "\n[tool call %s] %s(", event.CallID, event.Name)
	case ai.StreamEventFunctionCallArgumentDelta:
		fmt.Fprint(os.Stderr, event.ArgumentFragment)
	case ai.StreamEventFunctionCallDone:
		fmt.Fprintln(os.Stderr, ")")
	case ai.StreamEventUsage:
		if event.Usage != nil {
			fmt.Fprintf(os.Stderr, "\n[usage] in=%d out=%d total=%d\n",
				event.Usage.InputTokens, event.Usage.OutputTokens, event.Usage.TotalTokens)
		}
	case ai.StreamEventCompleted:
		if event.FinishReason != "" {
			fmt.Fprintf(os.Stderr, "[done] %s\n", event.FinishReason)
		}
	}
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "opencodex.toml"
	}
	return home + "/.config/opencodex/config.toml"
}
