package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/app"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase/dispatcher"
	"github.com/andreyxaxa/Webhook-Pipeline/migrations"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func enqueueCmd() *cobra.Command {
	var deliveryID string

	cmd := &cobra.Command{
		Use:   "enqueue <source> <event-type> [payload-file|-]",
		Short: "Store an intake event; the payload is read from a file, stdin (-) or --data",
		Example: `  pipelinectl enqueue payment_platform purchase_approved order.json
  echo '{"phone":"5511988887777","text":"quero comprar"}' | pipelinectl enqueue messaging_platform inbound_text -`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, args[2:])
			if err != nil {
				return err
			}

			return withCore(cmd.Context(), func(ctx context.Context, core *app.Core) error {
				id, err := core.Intake.Enqueue(ctx, entity.Source(args[0]), args[1], payload, deliveryID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&deliveryID, "delivery-id", "", "platform delivery id, repeated ids are collapsed")
	cmd.Flags().String("data", "", "inline JSON payload")

	return cmd
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if data, _ := cmd.Flags().GetString("data"); data != "" {
		return []byte(data), nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("payload required: pass a file, - for stdin, or --data")
	}

	if args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}

	return os.ReadFile(args[0])
}

func statusCmd() *cobra.Command {
	var listStatus string

	cmd := &cobra.Command{
		Use:   "status [intake-id]",
		Short: "Show queue counts, or one event with its action log and commands",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd.Context(), func(ctx context.Context, core *app.Core) error {
				out := cmd.OutOrStdout()

				if len(args) == 0 {
					if listStatus != "" {
						events, err := core.Intake.List(ctx, entity.IntakeFilter{Status: entity.Status(listStatus), Limit: 50})
						if err != nil {
							return err
						}
						return printJSON(out, events)
					}

					counts, err := core.Intake.Stats(ctx)
					if err != nil {
						return err
					}
					return printJSON(out, counts)
				}

				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid id %q: %w", args[0], err)
				}

				event, err := core.Intake.Get(ctx, id)
				if err != nil {
					return err
				}
				actions, err := core.Intake.Actions(ctx, id)
				if err != nil {
					return err
				}
				cmds, err := core.Intake.Commands(ctx, id)
				if err != nil {
					return err
				}

				return printJSON(out, map[string]any{
					"event":    event,
					"actions":  actions,
					"commands": cmds,
				})
			})
		},
	}

	cmd.Flags().StringVar(&listStatus, "list", "", "list the latest events with this status instead of counts")

	return cmd
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <intake-id>",
		Short: "Enqueue the payload of a failed event as a new event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			return withCore(cmd.Context(), func(ctx context.Context, core *app.Core) error {
				newID, err := core.Intake.Replay(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s replayed as %s\n", id, newID)
				return nil
			})
		},
	}
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <intake-id>",
		Short: "Claim one pending event and process it now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}

			return withCore(cmd.Context(), func(ctx context.Context, core *app.Core) error {
				event, err := core.Worker.ProcessByID(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), event)
			})
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the action sequence of every known source and event type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			routes := dispatcher.New(dispatcher.Stores{}, nil, logger.NewWithWriter(io.Discard, "error")).Routes()

			sources := make([]string, 0, len(routes))
			for s := range routes {
				sources = append(sources, string(s))
			}
			sort.Strings(sources)

			out := cmd.OutOrStdout()
			for _, s := range sources {
				byType := routes[entity.Source(s)]
				types := make([]string, 0, len(byType))
				for t := range byType {
					types = append(types, t)
				}
				sort.Strings(types)

				for _, t := range types {
					fmt.Fprintf(out, "%s/%s: %v\n", s, t, byType[t])
				}
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			applied, err := postgres.Migrate(cmd.Context(), cfg.PG.URL, migrations.FS)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migrations applied\n", applied)
			return nil
		},
	}
}
