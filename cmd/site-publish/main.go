package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/site-publish/internal/config"
	"github.com/yuya-takeyama/site-publish/internal/secret"
	"github.com/yuya-takeyama/site-publish/pkg/deployer"
	"github.com/yuya-takeyama/site-publish/pkg/logger"
	"github.com/yuya-takeyama/site-publish/pkg/remote"
	"github.com/yuya-takeyama/site-publish/pkg/syncer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

const defaultConfigFile = "site-publish.yaml"

var (
	configFile            string
	protocol              string
	host                  string
	port                  int
	user                  string
	passwordFrom          string
	keyFile               string
	insecureIgnoreHostKey bool
	localRoot             string
	remoteRoot            string
	excludes              []string
	noCreateRemoteRoot    bool
	landingPage           string
	timeout               string
	dryRun                bool
	quiet                 bool
	verbose               bool
	resultJSONFile        string
	region                string
	profile               string
	endpointURL           string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "site-publish",
		Short: "Upload a local site directory to a remote server",
		Long: `site-publish uploads every file and directory under a local root to a
remote directory over SFTP, FTPS, FTP or S3. Every run overwrites what is
on the remote; nothing is skipped and nothing is deleted.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&configFile, "config", defaultConfigFile, "Path to the YAML config file")
	rootCmd.Flags().StringVar(&protocol, "protocol", "", "Transfer protocol: sftp, ftps, ftp or s3")
	rootCmd.Flags().StringVar(&host, "host", "", "Remote host (bucket name for s3)")
	rootCmd.Flags().IntVar(&port, "port", 0, "Remote port (defaults per protocol)")
	rootCmd.Flags().StringVar(&user, "user", "", "Login user name")
	rootCmd.Flags().StringVar(&passwordFrom, "password-from", "", "Password reference: env:NAME, file:PATH, prompt: or aws-sm:ID[#key]")
	rootCmd.Flags().StringVar(&keyFile, "key-file", "", "SSH private key file (sftp)")
	rootCmd.Flags().BoolVar(&insecureIgnoreHostKey, "insecure-ignore-host-key", false, "Skip SSH host key verification (sftp)")
	rootCmd.Flags().StringVar(&localRoot, "local", "", "Local directory to upload")
	rootCmd.Flags().StringVar(&remoteRoot, "remote", "", "Remote directory to upload into (or s3://bucket/prefix)")
	rootCmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Exclude patterns (multiple allowed)")
	rootCmd.Flags().BoolVar(&noCreateRemoteRoot, "no-create-remote-root", false, "Fail instead of creating a missing remote root")
	rootCmd.Flags().StringVar(&landingPage, "landing-page", "", "File expected on the remote after upload (default index.html)")
	rootCmd.Flags().StringVar(&timeout, "timeout", "", "Connection timeout (default 30s)")
	rootCmd.Flags().BoolVar(&dryRun, "dryrun", false, "Shows operations without executing")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-error output")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Print debug output")
	rootCmd.Flags().StringVar(&resultJSONFile, "result-json-file", "", "Path to output result as JSON file")
	rootCmd.Flags().StringVar(&region, "region", "", "AWS region (uses default if not specified)")
	rootCmd.Flags().StringVar(&profile, "profile", "", "AWS profile to use")
	rootCmd.Flags().StringVar(&endpointURL, "endpoint-url", "", "Custom S3 endpoint URL")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	syncLogger := &logger.SyncLogger{
		IsDryRun:  dryRun,
		IsQuiet:   quiet,
		IsVerbose: verbose,
	}

	s, err := syncer.New(syncer.Options{
		Excludes: cfg.Excludes,
		Logger:   syncLogger,
	})
	if err != nil {
		return err
	}

	d := &deployer.Deployer{
		Config:  cfg,
		Dialer:  remote.Dial,
		Secrets: secret.NewDefaultRegistry(cfg.S3.Region, cfg.S3.Profile),
		Syncer:  s,
		Logger:  syncLogger,
		DryRun:  dryRun,
	}

	report, runErr := d.Run(ctx)

	if resultJSONFile != "" {
		if err := writeSyncResult(resultJSONFile, buildSyncResult(report, runErr)); err != nil {
			return fmt.Errorf("failed to write result JSON: %w", err)
		}
	}

	return runErr
}

// loadConfig reads the config file and applies the flags the user set. A
// missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var base config.Config
	loaded, err := config.Load(configFile)
	switch {
	case err == nil:
		base = *loaded
	case errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config"):
	default:
		return config.Config{}, err
	}

	cfg, err := base.WithOverrides(overridesFromFlags(cmd)).Validate()
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overridesFromFlags(cmd *cobra.Command) config.Overrides {
	flags := cmd.Flags()
	var o config.Overrides

	stringFlag := func(name string, v *string) *string {
		if flags.Changed(name) {
			return v
		}
		return nil
	}

	o.Protocol = stringFlag("protocol", &protocol)
	o.Host = stringFlag("host", &host)
	o.Username = stringFlag("user", &user)
	o.PasswordFrom = stringFlag("password-from", &passwordFrom)
	o.KeyFile = stringFlag("key-file", &keyFile)
	o.LocalRoot = stringFlag("local", &localRoot)
	o.RemoteRoot = stringFlag("remote", &remoteRoot)
	o.LandingPage = stringFlag("landing-page", &landingPage)
	o.Timeout = stringFlag("timeout", &timeout)
	o.Region = stringFlag("region", &region)
	o.Profile = stringFlag("profile", &profile)
	o.EndpointURL = stringFlag("endpoint-url", &endpointURL)
	o.Excludes = excludes

	if flags.Changed("port") {
		o.Port = &port
	}
	if flags.Changed("insecure-ignore-host-key") {
		o.InsecureIgnoreHostKey = &insecureIgnoreHostKey
	}
	if flags.Changed("no-create-remote-root") {
		create := !noCreateRemoteRoot
		o.CreateRemoteRoot = &create
	}
	return o
}
