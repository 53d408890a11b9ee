package main

import (
	"fmt"
	"strings"
	"time"

	"certhub/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "CERTCTL"

type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:   "certctl",
		Short: "CLI for the certificate service",
		Long: `certctl verifies certificates and runs admin operations against a running
certificate service.

The server URL and admin token come from --server/--token or from the
CERTCTL_SERVER and CERTCTL_TOKEN environment variables.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("server", "http://localhost:5000", "Certificate service URL")
	flags.String("token", "", "Admin bearer token")
	flags.StringP("output", "o", "table", "Output format: table, json, yaml")
	flags.Duration("timeout", 2*time.Minute, "Request timeout")
	for _, name := range []string{"server", "token", "output", "timeout"} {
		_ = c.v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		c.verifyCmd(),
		c.logViewCmd(),
		c.loginCmd(),
		c.listCmd(),
		c.revokeCmd(),
		c.statusCmd(),
		c.deleteCmd(),
		c.generateCmd(),
		c.exportCmd(),
	)
	return rootCmd
}

func (c *cli) client() *client.Client {
	opts := []client.Option{client.WithTimeout(c.v.GetDuration("timeout"))}
	if token := c.v.GetString("token"); token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(strings.TrimRight(c.v.GetString("server"), "/"), opts...)
}

// adminClient fails early when no token is configured.
func (c *cli) adminClient() (*client.Client, error) {
	if c.v.GetString("token") == "" {
		return nil, fmt.Errorf("no admin token: run certctl login or set %s_TOKEN", envPrefix)
	}
	return c.client(), nil
}

func (c *cli) output() string {
	return c.v.GetString("output")
}
