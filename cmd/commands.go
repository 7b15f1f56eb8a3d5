package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tasklist/internal/format"
	"tasklist/internal/importer"
	"tasklist/internal/server"
	"tasklist/internal/store"
	"tasklist/internal/task"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI and JSON API",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			rep, err := a.mgr.Repair(ctx, false)
			if err != nil {
				return fmt.Errorf("startup repair: %w", err)
			}
			if rep.Parked > 0 {
				a.log.Warn("repaired interrupted moves", "parked", rep.Parked, "renumbered", rep.Renumbered)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.mgr, a.exporter, a.log.WithPrefix("http"))
			return srv.ListenAndServe(ctx, a.cfg.Addr())
		}),
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the tasks in rank order",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			all, err := a.mgr.List(ctx)
			if err != nil {
				return err
			}
			printTasks(cmd, all)
			return nil
		}),
	}
}

func printTasks(cmd *cobra.Command, all []store.Task) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDEM\tID\tNOME\tCUSTO\tDATA LIMITE\t")
	var total float64
	for _, t := range all {
		mark := ""
		if t.Cost >= format.HighlightCost {
			mark = "*"
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s%s\t%s\t\n", t.Rank, t.ID, t.Name, format.CurrencyBR(t.Cost), mark, format.DateISOToBR(t.DueDate))
		total += t.Cost
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\nSomatório dos custos: %s\n", format.CurrencyBR(total))
}

func inputFlags(cmd *cobra.Command) {
	cmd.Flags().String("cost", "", "cost, e.g. 1234.56 or 1.234,56")
	cmd.Flags().String("due", "", "due date, YYYY-MM-DD or DD/MM/YYYY")
}

func readInput(cmd *cobra.Command, name string) (task.Input, error) {
	costStr, _ := cmd.Flags().GetString("cost")
	due, _ := cmd.Flags().GetString("due")
	if costStr == "" || due == "" {
		return task.Input{}, errors.New("--cost and --due are required")
	}
	cost, err := format.ParseNumberBR(costStr)
	if err != nil {
		return task.Input{}, fmt.Errorf("invalid cost %q", costStr)
	}
	return task.Input{Name: name, Cost: cost, DueDate: format.NormalizeDate(due)}, nil
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Create a task at the end of the order",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			t, err := a.mgr.Create(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created #%d %q at rank %d\n", t.ID, t.Name, t.Rank)
			return nil
		}),
	}
	inputFlags(cmd)
	return cmd
}

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit [id] [name]",
		Short: "Change name, cost and due date of a task",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			in, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			t, err := a.mgr.Update(ctx, id, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated #%d %q\n", t.ID, t.Name)
			return nil
		}),
	}
	inputFlags(cmd)
	return cmd
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.mgr.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted #%d\n", id)
			return nil
		}),
	}
}

func moveCmd(use string, d task.Direction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: "Move a task one position " + d.String(),
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var t store.Task
			if d == task.Up {
				t, err = a.mgr.MoveUp(ctx, id)
			} else {
				t, err = a.mgr.MoveDown(ctx, id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved #%d %q to rank %d\n", t.ID, t.Name, t.Rank)
			return nil
		}),
	}
}

func exportCmd() *cobra.Command {
	var f, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ranked list as json, csv or pdf",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			b, err := a.exporter.Export(ctx, f)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(out, b, 0644); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported -> %s\n", out)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&f, "format", "f", "json", "json|csv|pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (stdout when empty)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file or url]",
		Short: "Append tasks from a JSON or CSV document",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			rep, err := importer.New().Import(ctx, a.mgr, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", rep.Created, rep.Skipped)
			for _, e := range rep.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+e)
			}
			return nil
		}),
	}
}

func repairCmd() *cobra.Command {
	var compact bool
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Restore tasks left parked by an interrupted move",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			rep, err := a.mgr.Repair(ctx, compact)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "parked %d, renumbered %d\n", rep.Parked, rep.Renumbered)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&compact, "compact", false, "renumber ranks densely from 1")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print task events from NATS",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if a.bus == nil {
				return errors.New("watch needs NATS_URL")
			}
			out := cmd.OutOrStdout()
			err := a.bus.Subscribe(task.TopicPrefix+">", func(b []byte) error {
				ev, err := task.DecodeEvent(b)
				if err != nil {
					a.log.Warn("bad event", "err", err)
					return err
				}
				switch {
				case ev.Task != nil:
					fmt.Fprintf(out, "%s %-8s #%d %q rank=%d\n", ev.At.Format("15:04:05"), ev.Type, ev.Task.ID, ev.Task.Name, ev.Task.Rank)
				case ev.Repair != nil:
					fmt.Fprintf(out, "%s %-8s parked=%d renumbered=%d\n", ev.At.Format("15:04:05"), ev.Type, ev.Repair.Parked, ev.Repair.Renumbered)
				}
				return nil
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		}),
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
