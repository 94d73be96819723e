// Package main — ledgerctl, утилита оператора движка баллов.
// Работает с той же базой, что и бот: сверка журнала, перекат периода,
// просмотр рейтинга, снимков и победителей.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/ascenso-bot/internal/app"
	"serotonyl.ru/ascenso-bot/internal/config"
)

// engine создаётся в PersistentPreRunE; тесты подставляют свой.
var engine *app.Engine

var rootCmd = &cobra.Command{
	Use:           "ledgerctl",
	Short:         "Утилита оператора движка баллов Ascenso",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if engine != nil || cmd.Name() == "hash-password" {
			return nil
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
			log.SetLevel(level)
		}
		engine, err = app.NewEngine(cmd.Context(), cfg)
		return err
	},
}

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stderr)

	err := rootCmd.Execute()
	if engine != nil {
		engine.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}
