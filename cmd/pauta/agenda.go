package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pauta/internal/assemble"
	"pauta/internal/domain"
	"pauta/internal/engine"
	"pauta/internal/repo"
)

func agendaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agenda", Short: "Manage session agendas"}
	cmd.AddCommand(agendaListCmd())
	cmd.AddCommand(agendaCreateCmd())
	cmd.AddCommand(agendaShowCmd())
	cmd.AddCommand(agendaUpdateCmd())
	cmd.AddCommand(agendaDeleteCmd())
	cmd.AddCommand(agendaFinishCmd(true))
	cmd.AddCommand(agendaFinishCmd(false))
	cmd.AddCommand(agendaSummaryCmd())
	return cmd
}

func printAgendas(items []domain.Agenda) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Sessão", "Nº", "Data", "Finalizada"})
	for _, a := range items {
		date := a.Date
		if d, err := a.SessionDate(); err == nil {
			date = assemble.FormatDate(d)
		}
		finished := ""
		if a.IsFinished {
			finished = "sim"
		}
		tw.AppendRow(table.Row{a.ID, a.Type, a.Number, date, finished})
	}
	tw.Render()
	return nil
}

func agendaListCmd() *cobra.Command {
	var finished, open bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agendas, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := repo.AgendaFilters{Limit: limit}
			switch {
			case finished && open:
				return fmt.Errorf("--finished and --open are exclusive")
			case finished:
				v := true
				f.Finished = &v
			case open:
				v := false
				f.Finished = &v
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListAgendas(ctx, f)
				if err != nil {
					return err
				}
				return printAgendas(items)
			})
		},
	}
	cmd.Flags().BoolVar(&finished, "finished", false, "only finished agendas")
	cmd.Flags().BoolVar(&open, "open", false, "only open agendas")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of agendas")
	return cmd
}

func agendaCreateCmd() *cobra.Command {
	var in engine.AgendaInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create agenda",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAgenda(ctx, in, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&in.Type, "type", "", "session type, one of the configured session_types")
	cmd.Flags().StringVar(&in.Number, "number", "", "session number")
	cmd.Flags().StringVar(&in.Date, "date", "", "session date (yyyy-mm-dd or dd/mm/yyyy)")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("number")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func agendaShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show agenda and its processes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.GetAgenda(ctx, args[0])
				if err != nil {
					return err
				}
				procs, err := e.ListProcesses(ctx, a.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"agenda": a, "processes": procs})
				}
				if err := printAgendas([]domain.Agenda{a}); err != nil {
					return err
				}
				return printProcesses(procs)
			})
		},
	}
}

func agendaUpdateCmd() *cobra.Command {
	var typ, number, date string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an open agenda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch engine.AgendaPatch
			flags := cmd.Flags()
			if flags.Changed("type") {
				patch.Type = &typ
			}
			if flags.Changed("number") {
				patch.Number = &number
			}
			if flags.Changed("date") {
				patch.Date = &date
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateAgenda(ctx, args[0], patch, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "session type")
	cmd.Flags().StringVar(&number, "number", "", "session number")
	cmd.Flags().StringVar(&date, "date", "", "session date")
	return cmd
}

func agendaDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an open agenda and its processes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAgenda(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func agendaFinishCmd(finished bool) *cobra.Command {
	use, short := "reopen <id>", "Reopen a finished agenda for editing"
	if finished {
		use, short = "finish <id>", "Finish an agenda so it can be exported"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.SetAgendaFinished(ctx, args[0], finished, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
}

func agendaSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Show the outline grouped by counselor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.AgendaSummary(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Conselheiro / Processo", "Pág."})
				for _, g := range s.Groups {
					tw.AppendRow(table.Row{g.Counselor, g.Page})
					for _, entry := range g.Entries {
						tw.AppendRow(table.Row{fmt.Sprintf("  %d - Processo: %s", entry.Position, entry.ProcessNumber), entry.Page})
					}
					tw.AppendSeparator()
				}
				tw.Render()
				return nil
			})
		},
	}
}
