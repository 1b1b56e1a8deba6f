package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"pauta/internal/domain"
	"pauta/internal/engine"
	"pauta/internal/richtext"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "process", Short: "Manage the processes of an agenda"}
	cmd.AddCommand(processListCmd())
	cmd.AddCommand(processCreateCmd())
	cmd.AddCommand(processShowCmd())
	cmd.AddCommand(processUpdateCmd())
	cmd.AddCommand(processDeleteCmd())
	cmd.AddCommand(processImportCmd())
	cmd.AddCommand(processSheetsCmd())
	return cmd
}

func printProcesses(items []domain.Process) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable()
	tw.AppendHeader(table.Row{"Pos", "ID", "Processo", "Conselheiro", "Tipo", "Voto"})
	for _, p := range items {
		tw.AppendRow(table.Row{p.Position, p.ID, p.ProcessNumber, p.CounselorName, p.ProcessType, p.VoteType.Label()})
	}
	tw.Render()
	return nil
}

// processFlags binds one flag per editable process field. Rich text values
// accept @file.
type processFlags struct {
	str   map[string]*string
	bools map[string]*bool
	pos   int
}

var processStringFlags = []struct{ name, usage string }{
	{"counselor", "counselor name"},
	{"number", "process number"},
	{"type", "process type"},
	{"stakeholders", "stakeholders"},
	{"summary", "summary HTML"},
	{"vote-type", "convergente, divergente, parcialmente divergente, ..."},
	{"mpc-opinion", "MPC opinion summary HTML"},
	{"tce-report", "TCE technical report summary HTML"},
	{"view-vote", "view vote summary HTML"},
	{"mpc-manifest", "MPC system manifest HTML"},
	{"pgc-manifest", "modified PGC manifest HTML"},
	{"prosecutor", "prosecutor name"},
	{"observations", "observations HTML"},
	{"notes", "additional notes HTML"},
}

func bindProcessFlags(fs *pflag.FlagSet) *processFlags {
	pf := &processFlags{str: map[string]*string{}, bools: map[string]*bool{}}
	for _, f := range processStringFlags {
		pf.str[f.name] = fs.String(f.name, "", f.usage)
	}
	pf.bools["has-view-vote"] = fs.Bool("has-view-vote", false, "a view vote was requested")
	pf.bools["pgc-modified"] = fs.Bool("pgc-modified", false, "the PGC was modified")
	fs.IntVar(&pf.pos, "position", 0, "position on the agenda (default: next free)")
	return pf
}

// input maps only the flags the user set.
func (pf *processFlags) input(fs *pflag.FlagSet) (engine.ProcessInput, error) {
	var in engine.ProcessInput
	targets := map[string]**string{
		"counselor":    &in.CounselorName,
		"number":       &in.ProcessNumber,
		"type":         &in.ProcessType,
		"stakeholders": &in.Stakeholders,
		"summary":      &in.Summary,
		"vote-type":    &in.VoteType,
		"mpc-opinion":  &in.MPCOpinionSummary,
		"tce-report":   &in.TCEReportSummary,
		"view-vote":    &in.ViewVoteSummary,
		"mpc-manifest": &in.MPCSystemManifest,
		"pgc-manifest": &in.PGCModifiedManifest,
		"prosecutor":   &in.ProsecutorName,
		"observations": &in.Observations,
		"notes":        &in.AdditionalNotes,
	}
	for name, dst := range targets {
		if !fs.Changed(name) {
			continue
		}
		v, err := readValue(*pf.str[name])
		if err != nil {
			return in, fmt.Errorf("--%s: %w", name, err)
		}
		*dst = &v
	}
	if fs.Changed("has-view-vote") {
		in.HasViewVote = pf.bools["has-view-vote"]
	}
	if fs.Changed("pgc-modified") {
		in.IsPGCModified = pf.bools["pgc-modified"]
	}
	if fs.Changed("position") {
		in.Position = &pf.pos
	}
	return in, nil
}

func processListCmd() *cobra.Command {
	var agendaID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processes by position",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProcesses(ctx, agendaID)
				if err != nil {
					return err
				}
				return printProcesses(items)
			})
		},
	}
	cmd.Flags().StringVar(&agendaID, "agenda", "", "agenda id")
	_ = cmd.MarkFlagRequired("agenda")
	return cmd
}

func processCreateCmd() *cobra.Command {
	var agendaID string
	var pf *processFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a process to an open agenda",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := pf.input(cmd.Flags())
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProcess(ctx, agendaID, in, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&agendaID, "agenda", "", "agenda id")
	_ = cmd.MarkFlagRequired("agenda")
	pf = bindProcessFlags(cmd.Flags())
	return cmd
}

func processUpdateCmd() *cobra.Command {
	var pf *processFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a process of an open agenda",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := pf.input(cmd.Flags())
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdateProcess(ctx, args[0], in, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	pf = bindProcessFlags(cmd.Flags())
	return cmd
}

func processShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a process with its rich text as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProcess(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("%d - Processo: %s\n", p.Position, p.ProcessNumber)
				fmt.Printf("Conselheiro: %s\nTipo: %s\nInteressados: %s\nVoto: %s\nProcurador: %s\n",
					p.CounselorName, p.ProcessType, p.Stakeholders, p.VoteType.Label(), p.ProsecutorName)
				sections := []struct{ title, markup string }{
					{"Ementa", p.Summary},
					{"Parecer do MPC", p.MPCOpinionSummary},
					{"Relatório técnico", p.TCEReportSummary},
					{"Voto vista", p.ViewVoteSummary},
					{"Manifestação do MPC", p.MPCSystemManifest},
					{"PGC modificado", p.PGCModifiedManifest},
					{"Observações", p.Observations},
					{"Notas", p.AdditionalNotes},
				}
				for _, s := range sections {
					if richtext.IsBlank(s.markup) {
						continue
					}
					md, err := richtext.Markdown(s.markup)
					if err != nil {
						md = richtext.Strip(s.markup)
					}
					fmt.Printf("\n## %s\n\n%s\n", s.title, md)
				}
				return nil
			})
		},
	}
}

func processDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a process and renumber the rest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteProcess(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func processImportCmd() *cobra.Command {
	var agendaID, file, sheet string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import processes from an xlsx workbook",
		Long:  "Reads the first sheet (or --sheet). Rows are appended after the last position.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.ImportProcesses(ctx, agendaID, f, sheet, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(created)
				}
				fmt.Printf("Imported %d processes\n", len(created))
				return printProcesses(created)
			})
		},
	}
	cmd.Flags().StringVar(&agendaID, "agenda", "", "agenda id")
	cmd.Flags().StringVar(&file, "file", "", "xlsx workbook")
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (default: first)")
	_ = cmd.MarkFlagRequired("agenda")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func processSheetsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List the sheets of an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sheets, err := e.ImportSheets(f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sheets)
				}
				for _, s := range sheets {
					fmt.Println(s)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "xlsx workbook")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
