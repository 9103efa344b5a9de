package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/evesi/esiclient/pkg/esiclient"
	"github.com/evesi/esiclient/pkg/logging"
	"github.com/evesi/esiclient/pkg/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "esiprobe <path>",
		Short: "Issue a single request against ESI and print the decoded response",
		Args:  cobra.ExactArgs(1),
		RunE:  runProbe,
	}

	cmd.Flags().String("base-url", "https://esi.evetech.net", "ESI API origin")
	cmd.Flags().Int("pool-size", 1, "number of concurrent HTTP/2 sessions")
	cmd.Flags().Int("max-retries", 3, "additional attempts beyond the first")
	cmd.Flags().Duration("max-time", 10*time.Second, "total time budget across retries")
	cmd.Flags().String("token", "", "bearer token, if the endpoint requires auth")
	cmd.Flags().String("log-level", "info", "debug|info|warn|error")
	cmd.Flags().StringToString("query", nil, "extra query parameters, k=v,k2=v2")

	viper.SetEnvPrefix("ESIPROBE")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(cmd.Flags())

	return cmd
}

func runProbe(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(viper.GetString("log-level")),
		Output: os.Stderr,
	})

	settings := transport.DefaultSettings()
	settings.BaseURL = viper.GetString("base-url")

	cfg := esiclient.DefaultConfig()
	cfg.ConnectionSettings = settings
	cfg.PoolSize = viper.GetInt("pool-size")
	cfg.MaxRetries = viper.GetInt("max-retries")
	cfg.MaxTime = viper.GetDuration("max-time")
	cfg.Logger = logger

	c, err := esiclient.New(cfg)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	defer c.Close()

	opts := esiclient.RequestOptions{
		Query: viper.GetStringMapString("query"),
	}
	if token := viper.GetString("token"); token != "" {
		opts.Token = esiclient.StaticToken(token)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.MaxTime+5*time.Second)
	defer cancel()

	resp, err := c.Request(ctx, args[0], opts).Result(ctx)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	encoded, err := json.MarshalIndent(map[string]any{
		"status": resp.Status,
		"data":   resp.Data,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
