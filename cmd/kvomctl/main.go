// kvomctl is a small operator CLI over the tiered store: it reads and writes
// records, freezes them to the cold tier, thaws them back and can serve the
// REST facade.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/sharedcode/kvom"
	"github.com/sharedcode/kvom/awss3"
	"github.com/sharedcode/kvom/cassandra"
	"github.com/sharedcode/kvom/internal/cliconfig"
	"github.com/sharedcode/kvom/mem"
	"github.com/sharedcode/kvom/model"
	"github.com/sharedcode/kvom/redis"
	"github.com/sharedcode/kvom/restapi"
	"github.com/sharedcode/kvom/store"
)

// entrySchema is the schema kvomctl operates on: a single string value per key.
var entrySchema = model.MustSchema("entries",
	model.PrimaryField("id"),
	model.Field{Name: "value", Kind: model.String},
)

func main() {
	kvom.ConfigureLogging()
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "kvomctl",
		Short:         "Operate a kvom tiered object store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			cmd.InheritedFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default ~/.kvom/config.toml)")
	pf.StringVar(&cfg.RedisAddress, "redis-address", cfg.RedisAddress, "redis server address")
	pf.StringVar(&cfg.RedisPassword, "redis-password", cfg.RedisPassword, "redis server password")
	pf.IntVar(&cfg.RedisDB, "redis-db", cfg.RedisDB, "redis database number")
	pf.StringVar(&cfg.Keyspace, "keyspace", cfg.Keyspace, "hot tier keyspace prefix")
	pf.DurationVar(&cfg.FreezeTTL, "freeze-ttl", cfg.FreezeTTL, "hot tier TTL applied when freezing")
	pf.IntVar(&cfg.ShardCount, "shard-count", cfg.ShardCount, "index shard count")
	pf.StringVar(&cfg.ColdTier, "cold-tier", cfg.ColdTier, "cold tier backend: memory, cassandra or s3")
	pf.StringSliceVar(&cfg.CassandraHosts, "cassandra-hosts", cfg.CassandraHosts, "cassandra contact points")
	pf.StringVar(&cfg.CassandraKeyspace, "cassandra-keyspace", cfg.CassandraKeyspace, "cassandra keyspace for cold entries")
	pf.StringVar(&cfg.CassandraTable, "cassandra-table", cfg.CassandraTable, "cassandra cold entry table")
	pf.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "s3 region for the cold bucket")
	pf.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "s3 bucket holding cold entries")

	root.AddCommand(
		pingCommand(&cfg),
		getCommand(&cfg),
		setCommand(&cfg),
		deleteCommand(&cfg),
		freezeCommand(&cfg),
		thawCommand(&cfg),
		serveCommand(&cfg),
	)
	return root
}

// env wires the configured backends together for one command invocation.
type env struct {
	conn  *redis.Connection
	store *store.TieredStore
	index *store.Index
	close func()
}

func openEnv(ctx context.Context, cfg *cliconfig.Config) (*env, error) {
	conn := redis.Open(redis.Options{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	closers := []func(){func() { conn.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	cold, coldClose, err := openColdStore(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, err
	}
	if coldClose != nil {
		closers = append(closers, coldClose)
	}

	ts := store.NewTieredStore(conn, cfg.Keyspace, entrySchema, cold, store.TieredOptions{
		FreezeTTL: cfg.FreezeTTL,
	})
	ix := store.NewIndex(conn, cfg.Keyspace, cfg.ShardCount)
	return &env{conn: conn, store: ts, index: ix, close: closeAll}, nil
}

func openColdStore(ctx context.Context, cfg *cliconfig.Config) (kvom.ColdStore, func(), error) {
	switch cfg.ColdTier {
	case cliconfig.ColdTierCassandra:
		conn, err := cassandra.Open(cassandra.Config{
			ClusterHosts: cfg.CassandraHosts,
			Keyspace:     cfg.CassandraKeyspace,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect cassandra: %w", err)
		}
		cs, err := cassandra.NewColdStore(conn, cfg.CassandraTable)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		return cs, func() { conn.Close() }, nil
	case cliconfig.ColdTierS3:
		client := awss3.Connect(awss3.Config{Region: cfg.S3Region})
		cs, err := awss3.NewColdStore(client, cfg.S3Bucket)
		if err != nil {
			return nil, nil, err
		}
		return cs, nil, nil
	default:
		return mem.NewColdStore(), nil, nil
	}
}

func pingCommand(cfg *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the hot tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()
			b := kvom.NewBatch()
			f := b.Enqueue(e.conn, "ping")
			if err := b.Execute(cmd.Context()); err != nil {
				return err
			}
			reply, err := kvom.FutureValue[string](f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

func getCommand(cfg *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a record, thawing it from the cold tier if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()
			rec, err := e.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !rec.Exists() {
				return fmt.Errorf("key %q not found", args[0])
			}
			value, _ := rec.Get("value").(string)
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func setCommand(cfg *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a record to the hot tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()
			rec, err := e.store.New(map[string]any{"id": args[0], "value": args[1]})
			if err != nil {
				return err
			}
			n, err := e.store.Save(cmd.Context(), rec, false, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "changed %d field(s)\n", n)
			return nil
		},
	}
}

func deleteCommand(cfg *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>...",
		Short: "Delete records from both tiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()
			for _, key := range args {
				if err := e.store.Delete(cmd.Context(), key, nil); err != nil {
					return fmt.Errorf("delete %q: %w", key, err)
				}
			}
			return nil
		},
	}
}

func freezeCommand(cfg *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "freeze <key>...",
		Short: "Move records to the cold tier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()
			n, err := e.store.Freeze(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "froze %d of %d key(s)\n", n, len(args))
			return nil
		},
	}
}

func thawCommand(cfg *cliconfig.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "thaw <key>...",
		Short: "Restore records from the cold tier to the hot tier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.store.Thaw(cmd.Context(), args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "thawed %d key(s)\n", len(args))
			return nil
		},
	}
}

func serveCommand(cfg *cliconfig.Config) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST facade over the tiered store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer e.close()
			router := restapi.NewServer(e.store, e.index).Router()
			if !strings.Contains(listen, ":") {
				listen = ":" + listen
			}
			return router.Run(listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "address to serve HTTP on")
	return cmd
}
