package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/noah-isme/learnupon-exporter/internal/models"
	appErrors "github.com/noah-isme/learnupon-exporter/pkg/errors"
)

const startDateLayout = "2006-01-02"

// invocation is everything a subcommand collected from the command line.
type invocation struct {
	Kind        models.ReportKind
	Verbosity   int      `validate:"gte=0,lte=3"`
	OutputDir   string   `validate:"required"`
	CourseIDs   []string `validate:"dive,required"`
	StartDate   string   `validate:"omitempty,datetime=2006-01-02"`
	EmailDomain string   `validate:"omitempty,max=253"`
	PerCourse   bool
	SummaryPDF  bool
	Workers     int `validate:"gte=0,lte=256"`
	// WorkersSet is true when --workers was given explicitly.
	WorkersSet bool

	Stdout io.Writer
}

// CreatedFrom parses the validated start date.
func (inv invocation) CreatedFrom() *time.Time {
	if inv.StartDate == "" {
		return nil
	}
	t, err := time.Parse(startDateLayout, inv.StartDate)
	if err != nil {
		return nil
	}
	return &t
}

type runFunc func(ctx context.Context, inv invocation) error

var validate = validator.New()

func usageError(err error) error {
	if err == nil {
		return nil
	}
	return appErrors.Wrap(err, appErrors.ErrInvalidArgument, "")
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(check(cmd, args))
	}
}

func newRootCommand(stdout io.Writer, run runFunc) *cobra.Command {
	var verbosity int

	root := &cobra.Command{
		Use:           "learnupon-exporter",
		Short:         "Export learner enrollment and user data to CSV for LearnUpon",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 1, "verbosity level: 0=error, 1=warn, 2=info, 3=debug")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	enrollment := []struct {
		use   string
		short string
		kind  models.ReportKind
	}{
		{"enrollments", "Export enrollments with module activity and grade completion", models.ReportKindEnrollment},
		{"graded-enrollments", "Export enrollments with pass/fail grade status", models.ReportKindEnrollmentGraded},
		{"activity-enrollments", "Export enrollments completed by their latest activity", models.ReportKindEnrollmentActivity},
		{"external-enrollments", "Export enrollments with status from the LearnUpon status log", models.ReportKindEnrollmentExternal},
	}
	for _, c := range enrollment {
		root.AddCommand(newEnrollmentCommand(c.use, c.short, c.kind, &verbosity, stdout, run))
	}
	root.AddCommand(newUsersCommand(&verbosity, stdout, run))
	return root
}

func newEnrollmentCommand(use, short string, kind models.ReportKind, verbosity *int, stdout io.Writer, run runFunc) *cobra.Command {
	inv := invocation{Kind: kind}

	cmd := &cobra.Command{
		Use:   use + " output_dir [course_ids...]",
		Short: short,
		Long: short + ".\n\nOne or more course ids are required unless --per-course is set, " +
			"in which case an empty list exports every course to its own file.",
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv.Verbosity = *verbosity
			inv.OutputDir = args[0]
			inv.CourseIDs = args[1:]
			inv.WorkersSet = cmd.Flags().Changed("workers")
			inv.Stdout = stdout
			if !inv.PerCourse && len(inv.CourseIDs) == 0 {
				return usageError(errMissingCourses)
			}
			if inv.SummaryPDF && !inv.PerCourse {
				return usageError(errSummaryNeedsPerCourse)
			}
			if err := validate.Struct(inv); err != nil {
				return usageError(err)
			}
			return run(cmd.Context(), inv)
		},
	}
	cmd.Flags().StringVar(&inv.StartDate, "start-date", "", "only enrollments created on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&inv.EmailDomain, "email-domain", "", "only learners whose email ends with this suffix")
	cmd.Flags().BoolVar(&inv.PerCourse, "per-course", false, "write one file per course using a worker pool")
	cmd.Flags().BoolVar(&inv.SummaryPDF, "summary-pdf", false, "also write the per-course summary as a PDF into output_dir")
	cmd.Flags().IntVar(&inv.Workers, "workers", 0, "worker pool size for --per-course (default EXPORT_WORKERS or CPU count)")
	return cmd
}

func newUsersCommand(verbosity *int, stdout io.Writer, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "users output_dir course_ids...",
		Short: "Export the users enrolled in the given courses",
		Args:  usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := invocation{
				Kind:      models.ReportKindUser,
				Verbosity: *verbosity,
				OutputDir: args[0],
				CourseIDs: args[1:],
				Stdout:    stdout,
			}
			if err := validate.Struct(inv); err != nil {
				return usageError(err)
			}
			return run(cmd.Context(), inv)
		},
	}
}

var (
	errMissingCourses        = errors.New("at least one course id is required")
	errSummaryNeedsPerCourse = errors.New("--summary-pdf requires --per-course")
)
