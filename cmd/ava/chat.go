package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jsamit27/ava/internal/agent"
	"github.com/jsamit27/ava/internal/ava"
	"github.com/jsamit27/ava/internal/config"
	"github.com/jsamit27/ava/internal/domain"
	"github.com/jsamit27/ava/internal/geo"
	"github.com/jsamit27/ava/internal/sms"
	"github.com/jsamit27/ava/internal/store"
	"github.com/jsamit27/ava/internal/tools"
)

func newChatCmd() *cobra.Command {
	var (
		dbPath          string
		leadID          string
		buyerID         string
		escalationPhone string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat session against a local database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if err := ensureSchema(ctx, dbPath); err != nil {
				return err
			}

			client := ava.NewClient(cfg.Ava, leadID)
			if _, err := client.Login(ctx); err != nil {
				return err
			}
			if _, err := client.EnsureSession(ctx, true); err != nil {
				return err
			}

			sess := &domain.Session{
				SessionID:       uuid.NewString(),
				LeadID:          leadID,
				BuyerID:         buyerID,
				EscalationPhone: escalationPhone,
				StorageDSN:      dbPath,
			}
			toolset := tools.New(
				geo.NewFinder(cfg.Geo.MapsAPIKey, cfg.Geo.LocationsDir),
				sms.New(cfg.SMS.BaseURL, cfg.SMS.ClientID, cfg.SMS.ClientSecret, cfg.SMS.JWT),
			)
			mgr := agent.NewManager(&agent.Controller{Tools: toolset})
			mgr.Register(sess, client)

			fmt.Println("\nAva is ready. Type your message (or 'exit', '/logs').")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("You: ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if lower := strings.ToLower(line); lower == "exit" || lower == "quit" {
					break
				}
				if line == "/logs" {
					printRecentLogs(mgr, sess.SessionID)
					continue
				}

				reply, err := mgr.Turn(ctx, sess.SessionID, line)
				if err != nil {
					fmt.Println("Ava (error):", err)
					continue
				}
				fmt.Printf("Ava: %s\n\n", reply)
			}

			fmt.Println("Bye!")
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "storage descriptor: SQLite path or postgres:// URL")
	cmd.Flags().StringVar(&leadID, "lead", "", "lead id for this session")
	cmd.Flags().StringVar(&buyerID, "buyer", "", "buyer id for this session")
	cmd.Flags().StringVar(&escalationPhone, "escalation-phone", "", "phone number escalation SMS goes to")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("lead")
	_ = cmd.MarkFlagRequired("buyer")
	_ = cmd.MarkFlagRequired("escalation-phone")
	return cmd
}

func ensureSchema(ctx context.Context, dsn string) error {
	db, err := store.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck
	return db.EnsureSchema(ctx)
}

func printRecentLogs(mgr *agent.Manager, sessionID string) {
	entries, err := mgr.Logs(sessionID, 5)
	if err != nil {
		fmt.Println("no logs:", err)
		return
	}
	fmt.Println("---- recent logs ----")
	for _, e := range entries {
		fmt.Printf("%s  %-24s %s\n", e.At.Format("15:04:05"), e.Event, e.Detail)
	}
	fmt.Println("---------------------")
}
