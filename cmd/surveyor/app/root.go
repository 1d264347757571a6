// Package app builds the surveyor command line.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Hamza-Xoho/digital-surveyor/cmd/surveyor/app/options"
	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/httpapi"
	"github.com/Hamza-Xoho/digital-surveyor/internal/session"
)

// env is what every subcommand runs against, assembled once flags are parsed.
type env struct {
	opts   *options.Options
	log    zerolog.Logger
	guard  *session.Guard
	client *assessclient.Client
	out    io.Writer
}

func NewSurveyorCommand(ctx context.Context, out, errOut io.Writer) *cobra.Command {
	opts := options.NewOptions()
	e := &env{opts: opts, out: out}

	cmd := &cobra.Command{
		Use:          "surveyor",
		Short:        "Vehicle access assessments for UK addresses",
		Long:         "surveyor runs vehicle-access assessments against the Digital Surveyor backend and manages the local session.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Load(cmd.Flags()); err != nil {
				return err
			}
			e.log = httpapi.NewConsoleLogger(opts.LogLevel, errOut)
			e.guard = session.NewGuard(session.NewFileStore(opts.TokenFile))
			client, err := assessclient.New(e.log, opts.APIURL, e.guard, assessclient.Options{
				HTTPClient: &http.Client{Timeout: opts.Timeout},
			})
			if err != nil {
				return err
			}
			e.client = client
			return nil
		},
	}
	cmd.SetContext(ctx)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	opts.Flags(cmd.PersistentFlags())

	cmd.AddCommand(
		newAssessCommand(e),
		newVehiclesCommand(e),
		newLoginCommand(e),
		newLogoutCommand(e),
		newNotesCommand(e),
		newFormatCommand(e),
	)
	return cmd
}

func (e *env) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}
