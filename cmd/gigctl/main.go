package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gigbook/internal/app"
	"gigbook/internal/auth"
	"gigbook/internal/config"
	"gigbook/internal/logger"
	"gigbook/internal/models"
	"gigbook/internal/money"
	"gigbook/internal/validation"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:           "gigctl",
	Short:         "Operate a gigbook deployment",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIGCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("store", "", "store backend (overrides STORE_BACKEND)")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(feesCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(smokeCmd())
}

func loadConfig() *config.Config {
	cfg := config.Load()
	if backend := viper.GetString("store"); backend != "" {
		cfg.StoreBackend = backend
	}
	// Keep command output readable; the services still log warnings.
	logger.Init("warn", cfg.LogFormat)
	return cfg
}

func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.New(loadConfig(), "gigbook-cli")
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the document tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.DB == nil {
					return errors.New("migrate needs the postgres store backend")
				}
				if err := a.DB.RunMigrations(); err != nil {
					return err
				}
				fmt.Println("migrations applied")
				return nil
			})
		},
	}
}

func feesCmd() *cobra.Command {
	fees := &cobra.Command{Use: "fees", Short: "Inspect and clear escrowed fees"}
	fees.AddCommand(feesListCmd())
	fees.AddCommand(feesClearDueCmd())
	fees.AddCommand(feesClearCmd())
	return fees
}

func feesListCmd() *cobra.Command {
	var performerID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending fees, or every fee of one performer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var fees []models.PendingFee
				var err error
				if performerID != "" {
					fees, err = a.Repos.PendingFees.ListByPerformer(ctx, performerID)
				} else {
					fees, err = a.Repos.PendingFees.ListPending(ctx, limit)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(fees)
				}
				renderFees(fees)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&performerID, "performer", "", "performer id")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum pending fees to list")
	return cmd
}

func feesClearDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-due",
		Short: "Pay out every fee whose clearing time has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				resp, err := a.Services.Escrow.ClearDueFees(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(resp)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Fee", "Result"})
				for _, id := range resp.Cleared {
					tw.AppendRow(table.Row{id, "cleared"})
				}
				for _, id := range resp.Failed {
					tw.AppendRow(table.Row{id, "failed"})
				}
				tw.AppendFooter(table.Row{"Total", len(resp.Cleared) + len(resp.Failed)})
				tw.Render()
				return nil
			})
		},
	}
}

func feesClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <fee-id>",
		Short: "Pay out one fee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Services.Escrow.MarkFeeCleared(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("fee %s cleared\n", args[0])
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var userID string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, expires, err := auth.IssueToken(cfg.Auth.JWTSecret, userID, ttl, time.Now())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": token, "expiresAt": expires})
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to JWT_TTL)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func smokeCmd() *cobra.Command {
	var baseURL string
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Book and delete a throwaway gig against a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			report, err := validation.NewSmokeValidator(baseURL, cfg.Auth.JWTSecret, nil).ValidateAll(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(report)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Venue", "Gig", "Performer", "Agreed fee"})
			tw.AppendRow(table.Row{report.VenueID, report.GigID, report.PerformerID, report.AgreedFee})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8081", "API base URL")
	return cmd
}

func renderFees(fees []models.PendingFee) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Gig", "Performer", "Amount", "Status", "Clears", "Dispute"})
	var total int64
	for _, f := range fees {
		clears := ""
		if f.DisputeClearingTime != nil {
			clears = f.DisputeClearingTime.Format(time.RFC3339)
		}
		dispute := ""
		if f.DisputeLogged {
			dispute = f.DisputeReason
		}
		tw.AppendRow(table.Row{f.ID, f.GigID, f.PerformerID, money.Format(f.Amount), f.Status, clears, dispute})
		total += f.Amount
	}
	tw.AppendFooter(table.Row{"", "", "Total", money.Format(total)})
	tw.Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
