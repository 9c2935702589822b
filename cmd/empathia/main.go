package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/empathia/channel"
	engerr "github.com/hrygo/empathia/internal/errors"
	"github.com/hrygo/empathia/internal/profile"
	"github.com/hrygo/empathia/plugin/ai"
	"github.com/hrygo/empathia/plugin/ai/contextual"
	"github.com/hrygo/empathia/plugin/ai/memory"
	"github.com/hrygo/empathia/server/scheduler"
	"github.com/hrygo/empathia/server/service/chat"
	"github.com/hrygo/empathia/store"
	"github.com/hrygo/empathia/store/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "empathia",
		Short: "Conversational companion with layered memory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	p := profile.FromEnv()
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.IsAIEnabled() {
		return fmt.Errorf("no generation service configured, set EMPATHIA_AI_API_KEY")
	}

	driver, err := db.NewDriver(p)
	if err != nil {
		return err
	}
	memStore := store.New(driver, store.Config{DriverTimeout: p.StoreTimeout})
	defer memStore.Close()

	providerCfg := ai.DefaultProviderConfig()
	providerCfg.BaseURL = p.AIBaseURL
	providerCfg.APIKey = p.AIAPIKey
	providerCfg.Timeout = p.GenerationTimeout
	llm := ai.NewProvider(providerCfg)

	config := ai.StaticConfig{GenerationConfig: ai.GenerationConfig{
		BasePrompt: p.BasePrompt,
		Params: ai.GenerationParams{
			Model:           p.AIModel,
			MaxOutputTokens: p.AIMaxTokens,
			Temperature:     float32(p.AITemperature),
		},
	}}
	docs := &ai.FileReferenceDoc{Path: p.ReferenceDocPath}

	mem := memory.NewService(memStore, llm, config, memory.Config{
		HistoryCapacity: p.HistoryCapacity,
		SummaryInterval: p.SummaryInterval,
		CategoryCap:     p.CategoryCap,
		NoteInterval:    p.NoteInterval,
		Location:        p.Location(),
	})

	var gateway channel.Gateway = channel.Noop{}
	if p.TelegramToken != "" {
		tg, err := channel.NewTelegram(p.TelegramToken)
		if err != nil {
			return err
		}
		gateway = tg
	}

	assembler := contextual.NewAssembler(config, docs, mem)
	chatSvc := chat.NewService(mem, llm, assembler, gateway, p.GatewayMaxLength)

	if p.DiarySweep {
		sweeper := scheduler.NewDiarySweeper(mem, chatSvc, p.Location())
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	slog.Info("empathia started",
		"mode", p.Mode, "driver", p.Driver, "model", p.AIModel,
		"store", memStore.Stats())

	return console(chatSvc)
}

// console is a minimal local transport for development: one conversation,
// one line per turn. Production transports live outside the engine.
func console(svc *chat.Service) error {
	const conversationID = "console"
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Print("> ")
			continue
		}
		reply, err := svc.OnTurn(context.Background(), conversationID, text)
		if err != nil {
			if engerr.IsGenerationFailure(err) {
				fmt.Println(chat.ApologyText)
			} else {
				fmt.Println("error:", err)
			}
		} else {
			fmt.Println(reply)
		}
		fmt.Print("> ")
	}
	svc.WaitBackground()
	return scanner.Err()
}
