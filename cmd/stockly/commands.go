package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stockly-app/sessionkit/pkg/apiclient"
	"github.com/stockly-app/sessionkit/pkg/config"
	"github.com/stockly-app/sessionkit/pkg/requestid"
)

var (
	errLoginFailed  = errors.New("login failed")
	errNotSignedIn  = errors.New("not signed in")
	errSessionEnded = errors.New("session expired, signed out")
	errUnhealthy    = errors.New("health check failed")
)

// appRef holds the app built for the running command. Close is safe to call
// whether or not the command ran or succeeded.
type appRef struct {
	app *app
}

func (r *appRef) Close() error {
	if r.app == nil {
		return nil
	}
	return r.app.Close()
}

type globalFlags struct {
	envFiles  []string
	apiBase   string
	store     string
	storePath string
	logLevel  string
}

// rootCmd builds the command tree. The caller must Close the returned ref
// after execution; cobra skips post-run hooks when a command fails.
func rootCmd() (*cobra.Command, *appRef) {
	var (
		flags globalFlags
		ref   = &appRef{}
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Stockly session client",
		Long: `Stockly signs in to a Stockly server, keeps the session in a local
credential store and sends authenticated API requests with it.

Configuration comes from STOCKLY_* environment variables and an optional
.env file. Flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["skipApp"] == "true" {
				return nil
			}
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// One id per invocation ties the command's log lines to its requests.
			cmd.SetContext(requestid.WithContext(cmd.Context(), requestid.New()))
			ref.app, err = newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			return err
		},
	}

	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "Env files to load (default .env)")
	cmd.PersistentFlags().StringVar(&flags.apiBase, "api-base", "", "API base URL (overrides STOCKLY_API_BASE)")
	cmd.PersistentFlags().StringVar(&flags.store, "store", "", "Credential store backend: file, memory or redis")
	cmd.PersistentFlags().StringVar(&flags.storePath, "store-path", "", "Credential file for the file backend")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	appFn := func() *app { return ref.app }
	cmd.AddCommand(
		loginCmd(appFn),
		logoutCmd(appFn),
		whoamiCmd(appFn),
		statusCmd(appFn),
		getCmd(appFn),
		versionCmd(),
	)
	return cmd, ref
}

func loadConfig(flags globalFlags) (config.Config, error) {
	var cfg config.Config
	if err := config.Load(&cfg, flags.envFiles...); err != nil {
		return cfg, err
	}
	if flags.apiBase != "" {
		cfg.APIBase = flags.apiBase
	}
	if flags.store != "" {
		cfg.StoreBackend = flags.store
	}
	if flags.storePath != "" {
		cfg.StorePath = flags.storePath
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, nil
}

func loginCmd(appFn func() *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long:  "Sign in with username and password. The password is read from stdin when --password is not given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}

			a := appFn()
			if !a.manager.Login(cmd.Context(), username, password) {
				return errLoginFailed
			}
			u := a.manager.User()
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (id %d)\n", u.DisplayName(), u.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	return cmd
}

func logoutCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appFn().manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func whoamiCmd(appFn func() *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u := appFn().manager.User()
			if u == nil {
				return errNotSignedIn
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(u)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)\n", u.DisplayName(), u.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored profile as JSON")
	return cmd
}

func getCmd(appFn func() *app) *cobra.Command {
	var (
		asList      bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET request",
		Example: `  stockly get /api/v1/products/ --list
  stockly get /api/v1/company-profile/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if showMetrics {
				defer writeMetrics(cmd.ErrOrStderr(), a)
			}

			raw, err := a.client.DoRaw(ctx, http.MethodGet, args[0], nil)
			if err != nil {
				if apiclient.IsUnauthorized(err) {
					return errSessionEnded
				}
				return fmt.Errorf("%s: %s", apiclient.ErrorStatus(err), apiclient.ErrorMessage(err, err.Error()))
			}

			if asList {
				list, err := apiclient.NormalizeList[json.RawMessage](raw)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, raw, "", "  "); err != nil {
				_, err = out.Write(raw)
				return err
			}
			pretty.WriteByte('\n')
			_, err = pretty.WriteTo(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&asList, "list", false, "Normalise the response into {count, results}")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print request metrics to stderr")
	return cmd
}

func statusCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, session and store health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

			keys := a.store.Keys()
			fmt.Fprintf(w, "api\t%s\n", a.client.BaseURL())
			fmt.Fprintf(w, "store\t%s\n", a.storeInfo())
			fmt.Fprintf(w, "keys\t%s %s %s\n", keys.AccessToken, keys.RefreshToken, keys.UserInfo)
			if u := a.manager.User(); u != nil {
				fmt.Fprintf(w, "session\tsigned in as %s (id %d)\n", u.DisplayName(), u.ID)
			} else {
				fmt.Fprintf(w, "session\tanonymous\n")
			}

			var failed bool
			for _, c := range a.checks {
				if err := c.probe(ctx); err != nil {
					failed = true
					fmt.Fprintf(w, "%s\tFAIL %v\n", c.name, err)
					continue
				}
				fmt.Fprintf(w, "%s\tok\n", c.name)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed {
				return errUnhealthy
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"skipApp": "true"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// writeMetrics prints every sample gathered from the app registry as
// "name{labels} value".
func writeMetrics(w io.Writer, a *app) {
	families, err := a.registry.Gather()
	if err != nil {
		fmt.Fprintf(w, "metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)

			value := m.GetCounter().GetValue()
			if h := m.GetHistogram(); h != nil {
				value = float64(h.GetSampleCount())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
}
