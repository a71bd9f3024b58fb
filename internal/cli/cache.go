package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the weather cache",
	}
	cacheCmd.AddCommand(newCacheInfoCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	return cacheCmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print entry counts and cached cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			info, err := a.svc.CacheInfo(a.ctx(cmd.Context()))
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [city]",
		Short: "Clear the whole cache, or one city's entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := a.ctx(cmd.Context())
			if len(args) == 1 {
				if err := a.svc.ClearCity(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "cleared cache entry for %s\n", args[0])
				return nil
			}
			if err := a.svc.ClearCache(ctx); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "cache cleared")
			return nil
		},
	}
}
