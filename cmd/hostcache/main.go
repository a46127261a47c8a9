// Command hostcache inspects and edits the host cache from the shell. It
// counts as a command-line context, so the daemon must be opened up with
// enable_cli (or HOSTCACHE_ENABLE_CLI=1) before it will talk to it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leonardcser/hostcache/internal/cache"
	"github.com/leonardcser/hostcache/internal/config"
	"github.com/leonardcser/hostcache/internal/driver"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hostcache:", err)
		os.Exit(1)
	}
}

type app struct {
	cfgPath   string
	socket    string
	namespace string
	maxTTL    int
	enableCLI bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hostcache",
		Short:         "Inspect and edit the host cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", os.Getenv("HOSTCACHE_CONFIG"), "path to a YAML config file")
	pf.StringVar(&a.socket, "socket", "", "hostcached unix socket")
	pf.StringVar(&a.namespace, "namespace", "", "key namespace (default: install ID)")
	pf.IntVar(&a.maxTTL, "max-ttl", 0, "maximum entry lifetime in seconds")
	pf.BoolVar(&a.enableCLI, "enable-cli", false, "allow command-line access for this invocation")

	root.AddCommand(
		newProbeCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newClearCmd(a),
		newPurgeCmd(a),
		newKeysCmd(a),
		newStatsCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("socket") {
		cfg.Socket = a.socket
	}
	if flags.Changed("namespace") {
		cfg.Namespace = a.namespace
	}
	if flags.Changed("max-ttl") {
		cfg.TTL = a.maxTTL
	}
	if flags.Changed("enable-cli") {
		cfg.EnableCLI = a.enableCLI
	}
	a.cfg = cfg
	return nil
}

func (a *app) env() driver.Environment {
	return driver.Environment{Socket: a.cfg.Socket, CLI: true, EnableCLI: a.cfg.EnableCLI}
}

// driver opens the host driver, failing with driver.ErrUnavailable when the
// daemon is missing or closed to the CLI.
func (a *app) driver() (*driver.Host, error) {
	ns, err := a.cfg.ResolveNamespace()
	if err != nil {
		return nil, err
	}
	return driver.OpenHost(a.env(), driver.Options{TTL: a.cfg.TTL, Namespace: ns})
}

// client talks to the daemon directly, for operations outside the driver
// contract. It applies the same availability rules as driver.
func (a *app) client() (*cache.Client, error) {
	if _, err := a.driver(); err != nil {
		return nil, err
	}
	return cache.NewClient(a.cfg.Socket), nil
}
