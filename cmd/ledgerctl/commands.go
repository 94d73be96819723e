package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/features/admin"
	"serotonyl.ru/ascenso-bot/internal/features/ranking"
	"serotonyl.ru/ascenso-bot/internal/features/winners"
)

func init() {
	rootCmd.AddCommand(auditCmd, rolloverCmd, rankingCmd, snapshotCmd, winnersCmd, hashPasswordCmd)

	auditCmd.Flags().Bool("repair", false, "Перезаписать кеш баланса значениями из журнала")
	rankingCmd.Flags().String("period", "", "Период ГГГГ-ММ (по умолчанию текущий)")
	winnersCmd.Flags().String("period", "", "Период ГГГГ-ММ (по умолчанию текущий)")
}

// ─── audit ──────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit USER_ID",
	Short: "Сверить кеш баланса участника с журналом",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный USER_ID %q", args[0])
	}
	repair, _ := cmd.Flags().GetBool("repair")

	audit, err := engine.Ledger.Reconcile(cmd.Context(), userID, repair)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), audit.Message())
	return nil
}

// ─── rollover ───────────────────────────────────────────────────────────────

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Выполнить перекат периода, если месяц сменился",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := engine.Rollover.EnsureRollover(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Message())

		period, at, err := engine.Rollover.LastRun(cmd.Context())
		if err != nil {
			return err
		}
		if period != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Текущий период: %s, последнее изменение: %s\n", period, common.FormatDateTime(at))
		}
		return nil
	},
}

// ─── ranking ────────────────────────────────────────────────────────────────

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Показать топ периода",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, _ := cmd.Flags().GetString("period")
		period, rows, err := engine.Ranking.Top(cmd.Context(), period)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ranking.FormatTop(period, rows, engine.Ranking.MinPoints()))
		return nil
	},
}

// ─── snapshot ───────────────────────────────────────────────────────────────

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [PERIOD]",
	Short: "Показать снимок закрытого периода (ГГГГ-ММ, по умолчанию предыдущий)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := snapshotPeriod(cmd, args)
		if err != nil {
			return err
		}
		snap, err := engine.Rollover.GetSnapshot(cmd.Context(), period)
		if err != nil {
			return err
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Снимок %s (создан %s)\n", snap.PeriodKey, common.FormatDateTime(snap.CreatedAt))
		fmt.Fprintf(&sb, "Участников: %d, заработано всего: %s, максимум: %s\n",
			snap.Stats.Participants, common.FormatPoints(snap.Stats.TotalEarned), common.FormatPoints(snap.Stats.MaxEarned))
		for _, row := range snap.Top {
			fmt.Fprintf(&sb, "%d. %s (%d) — %s\n", row.Position, row.Name, row.UserID, common.FormatPoints(row.Points))
		}
		fmt.Fprint(cmd.OutOrStdout(), sb.String())
		return nil
	},
}

// snapshotPeriod — явный период или последний закрытый по состоянию переката.
func snapshotPeriod(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	current, _, err := engine.Rollover.LastRun(cmd.Context())
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", common.ErrSnapshotNotFound
	}
	return common.PreviousMonthKey(current)
}

// ─── winners ────────────────────────────────────────────────────────────────

var winnersCmd = &cobra.Command{
	Use:   "winners",
	Short: "Показать победителей периода",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, _ := cmd.Flags().GetString("period")
		period, list, err := engine.Winners.Get(cmd.Context(), period)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), winners.FormatWinners(period, list))
		return nil
	},
}

// ─── hash-password ──────────────────────────────────────────────────────────

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password PASSWORD",
	Short: "Сгенерировать ADMIN_PASSWORD_HASH (Argon2id)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := admin.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
