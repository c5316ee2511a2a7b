package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/config"
	"github.com/Koalla18/TakeSmart/internal/output"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the shared catalog cache",
	}
	cmd.PersistentFlags().StringP("output", "o", "table", "Output format (table, json, yaml)")
	cmd.AddCommand(cachePurgeCmd(), cacheStatsCmd())
	return cmd
}

// openSharedCache opens the configured backend, refusing the process-local
// memory cache which a separate CLI process cannot see.
func openSharedCache() (*cacheBackend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Backend == config.BackendMemory {
		return nil, errors.New("cache backend is memory: nothing shared to inspect")
	}
	return openCache(cfg)
}

func printerFor(cmd *cobra.Command) (*output.Printer, error) {
	name, _ := cmd.Flags().GetString("output")
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(format, cmd.OutOrStdout()), nil
}

func cacheStatsCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count cached keys per family in the shared cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := printerFor(cmd)
			if err != nil {
				return err
			}
			backend, err := openSharedCache()
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rows, err := familyCounts(ctx, backend.redis)
			if err != nil {
				return err
			}
			return printer.PrintFamilies(rows)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall scan timeout")
	return cmd
}

type prefixCounter interface {
	CountPrefix(ctx context.Context, prefix string) (int, error)
}

func familyCounts(ctx context.Context, c prefixCounter) ([]output.FamilyRow, error) {
	rows := make([]output.FamilyRow, 0, len(cachekey.Families))
	for _, f := range cachekey.Families {
		n, err := c.CountPrefix(ctx, string(f))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", f, err)
		}
		rows = append(rows, output.FamilyRow{Family: f.Name(), Prefix: string(f), Keys: n})
	}
	return rows, nil
}

func cachePurgeCmd() *cobra.Command {
	var (
		entities []string
		prefixes []string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge cached catalog entries",
		Long: "Purge every cache family derived from an entity (product, category, brand), " +
			"or raw key prefixes under catalog:. Peers with a local tier are notified.",
		Example: "  takesmart cache purge --entity product\n" +
			"  takesmart cache purge --prefix catalog:search:vec:",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets, err := purgeTargets(entities, prefixes)
			if err != nil {
				return err
			}
			printer, err := printerFor(cmd)
			if err != nil {
				return err
			}
			backend, err := openSharedCache()
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			rows := make([]output.PurgeRow, 0, len(targets))
			var errs []error
			for _, prefix := range targets {
				row := output.PurgeRow{Prefix: prefix}
				// Purge L2 directly; a tiered L1 here is empty and short-lived.
				n, err := backend.redis.DeletePrefix(ctx, prefix)
				row.Keys = n
				if err == nil {
					if perr := backend.inv.Publish(ctx, prefix); perr != nil {
						err = fmt.Errorf("announce: %w", perr)
					}
				}
				if err != nil {
					row.Error = err.Error()
					errs = append(errs, fmt.Errorf("purge %s: %w", prefix, err))
				}
				rows = append(rows, row)
			}
			if err := printer.PrintPurge(rows); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringSliceVar(&entities, "entity", nil, "Entity whose cache families to purge (product, category, brand)")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "Raw key prefix to purge (must start with catalog:)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall purge timeout")

	return cmd
}

// purgeTargets resolves entity names and raw prefixes into a deduplicated,
// ordered prefix list.
func purgeTargets(entities, prefixes []string) ([]string, error) {
	if len(entities) == 0 && len(prefixes) == 0 {
		return nil, errors.New("specify --entity or --prefix")
	}

	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, name := range entities {
		e, ok := cachekey.ParseEntity(name)
		if !ok {
			return nil, fmt.Errorf("unknown entity %q: want product, category or brand", name)
		}
		for _, p := range cachekey.PrefixesFor(e) {
			add(p)
		}
	}
	for _, p := range prefixes {
		if !strings.HasPrefix(p, "catalog:") {
			return nil, fmt.Errorf("prefix %q is outside the catalog namespace", p)
		}
		add(p)
	}
	return out, nil
}
