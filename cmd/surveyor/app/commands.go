package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hamza-Xoho/digital-surveyor/internal/assessclient"
	"github.com/Hamza-Xoho/digital-surveyor/internal/catalogue"
	"github.com/Hamza-Xoho/digital-surveyor/internal/envelope"
	"github.com/Hamza-Xoho/digital-surveyor/internal/postcode"
)

func newAssessCommand(e *env) *cobra.Command {
	var vehicle string
	var withEnvelope bool

	cmd := &cobra.Command{
		Use:   "assess POSTCODE",
		Short: "Run a vehicle-access assessment for a postcode",
		Example: `  surveyor assess "BN1 1AB"
  surveyor assess bn11ab --vehicle luton_3_5t --envelope`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := postcode.Validate(strings.Join(args, " "))
			if err != nil {
				return validationError(err)
			}
			if withEnvelope && vehicle == "" {
				return errors.New("--envelope needs --vehicle")
			}

			out, err := e.client.Run(cmd.Context(), pc)
			if err != nil {
				return err
			}
			if vehicle != "" {
				if _, ok := out.Result.Vehicle(vehicle); !ok {
					return fmt.Errorf("vehicle class %q is not in the result", vehicle)
				}
			}

			if withEnvelope {
				env, err := e.envelopeFor(cmd.Context(), vehicle, out)
				if err != nil {
					return err
				}
				return e.writeJSON(env.Features())
			}
			if e.opts.Output == "json" {
				return e.writeJSON(map[string]any{"outcome": out.Kind, "result": out.Result})
			}

			renderAssessment(e.out, out)
			if vehicle != "" {
				va, _ := out.Result.Vehicle(vehicle)
				fmt.Fprintln(e.out)
				renderChecks(e.out, va)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "Show the checks for one vehicle class.")
	cmd.Flags().BoolVar(&withEnvelope, "envelope", false, "Print the vehicle's footprint and turning circle as GeoJSON.")
	return cmd
}

func (e *env) envelopeFor(ctx context.Context, class string, out assessclient.Outcome) (envelope.Envelope, error) {
	cat := catalogue.New(e.log, e.client)
	if err := cat.Refresh(ctx); err != nil {
		return envelope.Envelope{}, fmt.Errorf("load vehicle profiles: %w", err)
	}
	env, ok := envelope.NewProjector(e.opts.Geodesic).Resolve(cat, class, out.Result.Center())
	if !ok {
		return envelope.Envelope{}, fmt.Errorf("no vehicle profile for class %q", class)
	}
	return env, nil
}

func newVehiclesCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "vehicles",
		Short: "List vehicle profiles, including your custom ones when logged in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalogue.New(e.log, e.client)
			if err := cat.Refresh(cmd.Context()); err != nil {
				return err
			}
			if e.opts.Output == "json" {
				return e.writeJSON(cat.List())
			}
			renderProfiles(e.out, cat.List())
			return nil
		},
	}
}

func newLoginCommand(e *env) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token for authenticated assessments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token = strings.TrimSpace(token)
			if !e.guard.IsValid(token) {
				return errors.New("token is malformed or expired")
			}
			if err := e.guard.Set(token); err != nil {
				return err
			}
			if exp, ok := e.guard.Expiry(); ok {
				e.printf("Logged in until %s\n", exp.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token issued by the backend.")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func newLogoutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.guard.Clear(); err != nil {
				return err
			}
			e.printf("Logged out\n")
			return nil
		},
	}
}

func newNotesCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "notes ASSESSMENT_ID TEXT...",
		Short: "Attach notes to a saved assessment",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.client.UpdateNotes(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				if errors.Is(err, assessclient.ErrNotAuthenticated) {
					return errors.New("notes need a session; run surveyor login first")
				}
				return err
			}
			e.printf("Notes saved\n")
			return nil
		},
	}
}

func newFormatCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "format INPUT",
		Short: "Normalise postcode input and report whether it is valid",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			pc, err := postcode.Validate(raw)
			if e.opts.Output == "json" {
				resp := map[string]any{"formatted": postcode.FormatInput(raw), "valid": err == nil}
				if err == nil {
					resp["canonical"] = pc.String()
				}
				return e.writeJSON(resp)
			}
			e.printf("%s\n", postcode.FormatInput(raw))
			if err != nil {
				return validationError(err)
			}
			return nil
		},
	}
}

func validationError(err error) error {
	if errors.Is(err, postcode.ErrEmpty) {
		return errors.New("Please enter a postcode")
	}
	return errors.New("Please enter a valid UK postcode")
}

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
