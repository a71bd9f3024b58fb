package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmoreira/weathertool/internal/weathererr"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <city>",
		Short: "Print current weather for a city as flat JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			record, err := a.svc.GetWeather(a.ctx(cmd.Context()), args[0])
			if err != nil {
				return describeQueryError(err, args[0])
			}
			return printJSON(record.LegacyFormat())
		},
	}
}

func newAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent <city>",
		Short: "Print current weather in the nested agent format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.svc.GetWeatherForAgent(a.ctx(cmd.Context()), args[0])
			if err != nil {
				return describeQueryError(err, args[0])
			}
			return printJSON(result)
		},
	}
}

func newDisplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "display <city>",
		Short: "Print a one-line human-readable summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			display, err := a.svc.DisplayWeather(a.ctx(cmd.Context()), args[0])
			if err != nil {
				return describeQueryError(err, args[0])
			}
			fmt.Fprintln(os.Stdout, display)
			return nil
		},
	}
}

// describeQueryError rewrites service errors for terminal users: the
// not-found case suggests a spelling fix instead of a retry.
func describeQueryError(err error, city string) error {
	switch {
	case weathererr.IsCityNotFound(err):
		return fmt.Errorf("city %q not found; check the spelling", city)
	case weathererr.IsValidation(err):
		return fmt.Errorf("the weather provider returned an unexpected payload: %w", err)
	case weathererr.IsAPI(err):
		return fmt.Errorf("weather provider unavailable, try again later: %w", err)
	default:
		return err
	}
}
