package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardcser/hostcache/internal/driver"
	"github.com/leonardcser/hostcache/internal/keypath"
)

var errMiss = errors.New("not found")

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Report whether the host cache is usable from here",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := driver.ProbeHost(a.env())
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(info); err != nil {
				return err
			}
			if !info.Available {
				return fmt.Errorf("%w: %s", driver.ErrUnavailable, info.Reason)
			}
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	var showMeta bool
	cmd := &cobra.Command{
		Use:   "get SEGMENT...",
		Short: "Print the value stored at a key path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.driver()
			if err != nil {
				return err
			}
			e, ok := d.GetData(args)
			if !ok {
				return errMiss
			}
			out := cmd.OutOrStdout()
			if showMeta {
				fmt.Fprintf(out, "expires: %s\n", fmtTime(e.Expiration))
			}
			_, err = out.Write(e.Data)
			return err
		},
	}
	cmd.Flags().BoolVar(&showMeta, "meta", false, "print the requested expiration before the value")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var (
		ttl     time.Duration
		expires string
	)
	cmd := &cobra.Command{
		Use:   "set SEGMENT... VALUE",
		Short: "Store a value at a key path",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp := time.Now().Add(ttl)
			if expires != "" {
				t, err := time.Parse(time.RFC3339, expires)
				if err != nil {
					return fmt.Errorf("--expires: %w", err)
				}
				exp = t
			}
			d, err := a.driver()
			if err != nil {
				return err
			}
			path, value := args[:len(args)-1], args[len(args)-1]
			if !d.StoreData(path, []byte(value), exp) {
				return errors.New("store rejected the write")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 5*time.Minute, "requested lifetime")
	cmd.Flags().StringVar(&expires, "expires", "", "absolute RFC3339 expiration; overrides --ttl")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [SEGMENT...]",
		Short: "Remove a key path and everything below it; no path clears the whole cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.driver()
			if err != nil {
				return err
			}
			if !d.Clear(args) {
				return errors.New("clear failed")
			}
			return nil
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Run driver maintenance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.driver()
			if err != nil {
				return err
			}
			if !d.Purge() {
				return errors.New("purge failed")
			}
			return nil
		},
	}
}

func newKeysCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "keys [SEGMENT...]",
		Short: "List stored keys at or below a key path",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ns, err := a.cfg.ResolveNamespace()
			if err != nil {
				return err
			}
			keys, err := c.Keys()
			if err != nil {
				return err
			}
			sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tEXPIRES")
			for _, k := range keys {
				if !all && !keypath.IsUnder(k.Key, ns, args) {
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", k.Key, k.Size, fmtTime(k.ExpiresAt))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list keys of every namespace")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show daemon record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			st, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "records: %d\nlive: %d\n", st.Records, st.Live)
			return nil
		},
	}
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
