package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rfidattend/internal/attendance"
	"rfidattend/internal/jalali"
)

func newNowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Print the current Tehran time in the Solar Hijri calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := jalali.FromTime(opts.now())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"time": dt.String(), "persian": dt.Persian()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), dt.String())
			fmt.Fprintln(cmd.OutOrStdout(), dt.Persian())
			return nil
		},
	}
}

func newTagCmd(opts *options) *cobra.Command {
	tag := &cobra.Command{
		Use:   "tag",
		Short: "Manage the tag registry",
	}
	tag.AddCommand(&cobra.Command{
		Use:   "add <rfid> <name>",
		Short: "Register a new tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.svc.RegisterTag(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s\n", attendance.NormalizeTag(args[0]), args[1])
			return nil
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List registered tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			tags := s.svc.Registry().Tags()
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), tags)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RFID\tNAME")
			for _, t := range tags {
				fmt.Fprintf(tw, "%s\t%s\n", t.TagID, t.Name)
			}
			return tw.Flush()
		},
	})
	return tag
}

func newReportCmd(opts *options) *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Compute worked time and attendance days",
	}

	var tagID string
	rangeCmd := &cobra.Command{
		Use:   "range <from> <to>",
		Short: "Report an inclusive date range (YYYY-MM-DD)",
		Example: `  rfidctl report range 1403-01-01 1403-01-31
  rfidctl report range 1403-01-01 1403-01-31 --rfid A1B2C3D4E5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := jalali.ParseDate(args[0])
			if err != nil {
				return err
			}
			to, err := jalali.ParseDate(args[1])
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			r := jalali.Range{From: from, To: to}
			if tagID != "" {
				sum, err := s.svc.TagReport(tagID, r)
				if err != nil {
					return err
				}
				name, _ := s.svc.Registry().Lookup(tagID)
				if name == "" {
					name = attendance.UnknownName
				}
				row := attendance.ReportRow{TagID: attendance.NormalizeTag(tagID), Name: name, TotalWorkedTime: sum.WorkedTime(), TotalDays: sum.Days}
				return printReport(cmd.OutOrStdout(), opts.jsonOutput, r, []attendance.ReportRow{row})
			}
			rows, err := s.svc.ReportRange(r)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts.jsonOutput, r, rows)
		},
	}
	rangeCmd.Flags().StringVar(&tagID, "rfid", "", "restrict the report to one tag")

	type build func(*attendance.Service) (jalali.Range, []attendance.ReportRow, error)
	periodic := func(use, short string, previous, current build) *cobra.Command {
		var inProgress bool
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := opts.open(cmd.Context())
				if err != nil {
					return err
				}
				defer s.Close()
				fn := previous
				if inProgress {
					fn = current
				}
				r, rows, err := fn(s.svc)
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), opts.jsonOutput, r, rows)
			},
		}
		cmd.Flags().BoolVar(&inProgress, "current", false, "report the period in progress instead of the previous one")
		return cmd
	}

	report.AddCommand(rangeCmd,
		periodic("weekly", "Report the previous Saturday..Friday week",
			(*attendance.Service).LastWeekReport, (*attendance.Service).CurrentWeekReport),
		periodic("monthly", "Report the previous Solar Hijri month",
			(*attendance.Service).LastMonthReport, (*attendance.Service).CurrentMonthReport),
	)
	return report
}

type reportOutput struct {
	StartDate string                 `json:"startDate"`
	EndDate   string                 `json:"endDate"`
	Reports   []attendance.ReportRow `json:"reports"`
}

func printReport(w io.Writer, asJSON bool, r jalali.Range, rows []attendance.ReportRow) error {
	if rows == nil {
		rows = []attendance.ReportRow{}
	}
	if asJSON {
		return writeJSON(w, reportOutput{StartDate: r.From.String(), EndDate: r.To.String(), Reports: rows})
	}
	fmt.Fprintf(w, "Report %s\n", r)
	// tags with no sessions in range still get a zero row
	if len(rows) == 0 {
		fmt.Fprintln(w, "No attendance data.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RFID\tNAME\tWORKED\tDAYS")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", row.TagID, row.Name, row.TotalWorkedTime, row.TotalDays)
	}
	return tw.Flush()
}

func newLedgerCmd(opts *options) *cobra.Command {
	ledger := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect attendance records",
	}
	var (
		tagID string
		limit int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the newest records first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			events := s.svc.Events(tagID, limit)
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), events)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tTIME\tRFID\tNAME\tACTION")
			for _, e := range events {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Seq, e.Time, e.TagID, e.Name, e.Action)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&tagID, "rfid", "", "only records of this tag")
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")
	ledger.AddCommand(list)
	return ledger
}

func newRecipientsCmd(opts *options) *cobra.Command {
	recipients := &cobra.Command{
		Use:   "recipients",
		Short: "Inspect authorized chat recipients",
	}
	recipients.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List authorized chat ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			ids, err := s.backend.LoadRecipients(cmd.Context())
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []int64{}
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), ids)
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})
	return recipients
}
