// cmd/assetsync - CLI front end for the asset synchronization engine
// -----------------------------------------------------------------------------
// Provides the "sync" command: walk one or more local directories, diff
// them against a remote (or in-process) canister's asset inventory, and
// commit the resulting batch of operations.
// -----------------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"canister-assets/internal/assetsync"
	"canister-assets/pkg/canisterclient"
	"canister-assets/pkg/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assetsync",
		Short: "synchronize a local directory tree with a certified asset canister",
	}
	root.PersistentFlags().String("canister", "", "base URL of the target canister's asset server (overrides sync.canister_id in config)")
	root.PersistentFlags().String("env", "", "config environment overlay to merge over default.yaml")
	root.PersistentFlags().Bool("insecure-dev-mode", false, "accepted but not applied: uploaded assets always carry their configured security-policy headers")
	root.PersistentFlags().Bool("verbose", false, "print the resolved plan before committing")
	root.PersistentFlags().Int("max-concurrency", assetsync.DefaultMaxConcurrency, "maximum concurrent create_chunk calls (overrides sync.max_concurrency in config)")
	_ = viper.BindPFlag("canister", root.PersistentFlags().Lookup("canister"))
	_ = viper.BindPFlag("env", root.PersistentFlags().Lookup("env"))
	_ = viper.BindPFlag("insecure_dev_mode", root.PersistentFlags().Lookup("insecure-dev-mode"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("max_concurrency", root.PersistentFlags().Lookup("max-concurrency"))

	root.AddCommand(syncCmd())
	return root
}

func syncCmd() *cobra.Command {
	var watch bool
	var clearObsolete bool

	cmd := &cobra.Command{
		Use:   "sync [source-dirs...]",
		Short: "upload local asset changes and commit them to the canister",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.NewEntry(logrus.StandardLogger())
			if viper.GetBool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			}

			// Config is optional for this CLI: a sync.* section lets an
			// operator pin a canister and source list without repeating
			// flags, but running with flags/args alone is just as valid.
			syncCfg, err := config.Load(viper.GetString("env"))
			if err != nil {
				log.Debugf("no sync config loaded: %v", err)
				syncCfg = &config.Config{}
			}

			canisterURL := viper.GetString("canister")
			if canisterURL == "" {
				canisterURL = syncCfg.Sync.CanisterID
			}
			if canisterURL == "" {
				return fmt.Errorf("--canister is required (or set sync.canister_id in config)")
			}

			if len(args) == 0 {
				args = syncCfg.Sync.SourceDirectories
			}
			if len(args) == 0 {
				return fmt.Errorf("no source directories given (pass them as arguments or set sync.source_directories in config)")
			}

			maxConcurrency := viper.GetInt("max_concurrency")
			if !cmd.Flags().Changed("max-concurrency") && syncCfg.Sync.MaxConcurrency > 0 {
				maxConcurrency = syncCfg.Sync.MaxConcurrency
			}

			client := canisterclient.NewHTTP(canisterURL, nil)
			mgr := assetsync.NewManager(client, log)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			for _, dir := range args {
				opts := assetsync.Options{SourceDir: dir, ClearObsolete: clearObsolete, MaxConcurrency: maxConcurrency}
				if watch {
					if err := runWatch(ctx, mgr, opts, log); err != nil {
						return err
					}
					continue
				}
				result, err := mgr.SyncOnce(ctx, opts)
				if err != nil {
					return fmt.Errorf("sync %s: %w", dir, err)
				}
				printResult(dir, result, viper.GetBool("verbose"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-run the diff/sync loop whenever files under the source tree change")
	cmd.Flags().BoolVar(&clearObsolete, "clear-obsolete", true, "delete canister keys that no longer exist in the project")
	return cmd
}

func printResult(dir string, result *assetsync.Result, verbose bool) {
	if len(result.Operations) == 0 {
		fmt.Printf("%s: up to date\n", dir)
		return
	}
	fmt.Printf("%s: committed %d operation(s) in batch %d\n", dir, len(result.Operations), result.BatchID)
	if !verbose {
		return
	}
	for _, op := range result.Operations {
		fmt.Printf("  %T\n", op)
	}
}

func runWatch(ctx context.Context, mgr *assetsync.Manager, opts assetsync.Options, log *logrus.Entry) error {
	trigger, stop, err := assetsync.WatchSource(opts.SourceDir, log)
	if err != nil {
		return fmt.Errorf("watch %s: %w", opts.SourceDir, err)
	}
	defer stop()

	log.Infof("watching %s for changes (ctrl-c to stop)", opts.SourceDir)
	mgr.Start(ctx, opts, trigger)
	<-ctx.Done()
	mgr.Stop()
	// give the in-flight sync a moment to settle before returning.
	time.Sleep(100 * time.Millisecond)
	return nil
}
