package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/caarlos0/env/v6"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkordes/tripwit/internal/assist"
	"github.com/pkordes/tripwit/internal/bookingmail"
	"github.com/pkordes/tripwit/internal/itinerary"
)

// assistVars reads the Gemini settings shared with the API server.
type assistVars struct {
	APIKey string `env:"GEMINI_API_KEY"`
	Model  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
}

func addParse(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Turn free-form text into itinerary days or bookings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	addParseItinerary(cmd)
	addParseBooking(cmd)
	topLevel.AddCommand(cmd)
}

func addParseItinerary(parent *cobra.Command) {
	var days int
	var useAI bool
	cmd := &cobra.Command{
		Use:   "itinerary [FILE]",
		Short: "Split itinerary text into days of stops and print them as JSON.",
		Example: `
tripwit parse itinerary notes.txt --days 5
pbpaste | tripwit parse itinerary --ai
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

			var ai itinerary.Suggester
			if useAI {
				client, closeFn, err := newAssist(cmd.Context(), log)
				if err != nil {
					return err
				}
				defer closeFn()
				ai = client
			}
			parsed := itinerary.NewParser(ai, log).Parse(cmd.Context(), string(text), days)
			if itinerary.Empty(parsed) {
				_, _ = color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "no stops found")
			}
			return printJSON(cmd.OutOrStdout(), parsed)
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "Number of days in the trip; day numbers are clamped to it.")
	cmd.Flags().BoolVar(&useAI, "ai", false, "Ask Gemini first (GEMINI_API_KEY), falling back to the heuristic parser.")
	parent.AddCommand(cmd)
}

func addParseBooking(parent *cobra.Command) {
	var html bool
	cmd := &cobra.Command{
		Use:   "booking [FILE]",
		Short: "Extract flight, hotel and car rental bookings from a confirmation email.",
		Example: `
tripwit parse booking confirmation.txt
tripwit parse booking --html confirmation.html
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			text := string(raw)
			if html {
				if text, err = bookingmail.TextFromHTML(text); err != nil {
					return err
				}
			}
			bookings := bookingmail.ParseOrPlaceholder(text)
			if bookings == nil {
				bookings = []bookingmail.ParsedBooking{}
			}
			return printJSON(cmd.OutOrStdout(), bookings)
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "Treat the input as an HTML email body.")
	parent.AddCommand(cmd)
}

func newAssist(ctx context.Context, log *slog.Logger) (*assist.Client, func(), error) {
	var v assistVars
	if err := env.Parse(&v); err != nil {
		return nil, nil, err
	}
	if v.APIKey == "" {
		return nil, nil, errors.New("--ai needs GEMINI_API_KEY to be set")
	}
	gemini, err := assist.NewGemini(ctx, v.APIKey, v.Model)
	if err != nil {
		return nil, nil, err
	}
	return assist.NewClient(gemini, log), func() { _ = gemini.Close() }, nil
}
