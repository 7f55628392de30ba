package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/git"
	redisAdapter "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	backend "github.com/redis/go-redis/v9"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor coordinates hierarchical work for humans and agents",
	Long: `Arbor manages workspaces: trees of planning and execution nodes with an
explicit lifecycle, bounded executor context and git-backed dispatch.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Project directory holding the .arbor store")
}

// openClient builds an arbor client from the --dir flag and the project
// configuration.
func openClient(cmd *cobra.Command) (*arbor.Client, config.Config, error) {
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, cfg, err
	}

	logger := logging.New(cfg.Level())

	opts := []arbor.Option{arbor.WithLogger(logger)}

	gitRepo := cfg.GitRepo
	if gitRepo == "" {
		gitRepo = dir
	}
	opts = append(opts, arbor.WithVCS(git.NewRepository(gitRepo)))

	if len(cfg.RedactPatterns) > 0 {
		opts = append(opts, arbor.WithStoreMiddleware(middleware.NewRedactionMiddleware(cfg.RedactPatterns)))
	}

	if cfg.Redis.Enabled {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts,
			arbor.WithStore(redisAdapter.NewFromClient(client)),
			arbor.WithLocker(redisAdapter.NewLocker(client, "arbor:")),
		)
	}

	client, err := arbor.Open(dir, opts...)
	return client, cfg, err
}
