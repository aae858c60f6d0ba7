package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pindapp/pind/internal/api"
	"github.com/pindapp/pind/internal/client"
	"github.com/pindapp/pind/internal/config"
	"github.com/pindapp/pind/internal/domain"
	"github.com/pindapp/pind/internal/logging"
	"github.com/pindapp/pind/internal/mapview"
	"github.com/pindapp/pind/internal/session"
	"github.com/pindapp/pind/internal/store"
	"github.com/pindapp/pind/internal/titles"
	"github.com/pindapp/pind/internal/view"
)

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "pind",
		Short: "Extract and map the places mentioned in a video",
	}

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(mapCmd())
	rootCmd.AddCommand(localCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(resetPasswordCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired-up pieces every command needs.
type app struct {
	cfg      config.Config
	storage  *store.Store
	sessions *session.Store
	ctrl     *view.Controller
	api      *client.Client
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	storage, err := store.New(filepath.Join(cfg.StateDir, "pind.db"))
	if err != nil {
		return nil, err
	}

	apiClient := client.New(cfg.BackendURL, cfg.RequestTimeout)
	sessions := session.New(apiClient, storage)
	sessions.Initialize()

	titleFetcher := titles.New(cfg.RequestTimeout)
	ctrl := view.New(apiClient, sessions, storage, titleFetcher.Lookup, cfg.DevMode)

	return &app{cfg: cfg, storage: storage, sessions: sessions, ctrl: ctrl, api: apiClient}, nil
}

func (a *app) close() {
	if err := a.storage.Close(); err != nil {
		logging.Warn().Err(err).Msg("closing local store")
	}
}

func processCmd() *cobra.Command {
	var width, height int
	var format string

	cmd := &cobra.Command{
		Use:   "process [url]",
		Short: "Submit a video URL and map the places found in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			url := args[0]
			if !client.IsYouTubeURL(url) {
				fmt.Fprintln(os.Stderr, "warning: this does not look like a YouTube URL")
			}

			if err := a.ctrl.ProcessURL(cmd.Context(), url); err != nil {
				return err
			}
			if msg := a.ctrl.Err(); msg != "" {
				fmt.Println(msg)
			}
			return renderMap(a.ctrl.VisibleLocations(), width, height, format)
		},
	}

	addRenderFlags(cmd, &width, &height, &format)
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List previously processed videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if !a.sessions.IsAuthenticated() {
				fmt.Println("Not logged in; history lives in your account. Use 'pind login'.")
				return nil
			}

			if err := a.ctrl.RefreshHistory(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "error: %s\n", a.ctrl.Err())
			}

			entries := a.ctrl.History()
			if len(entries) == 0 {
				fmt.Println("No history yet. Process a video first.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %s  %s  (%d places)\n", e.ID, e.Date, truncate(e.Title, 50), len(e.Places))
			}
			return nil
		},
	}
}

func mapCmd() *cobra.Command {
	var checked []string
	var last bool
	var width, height int
	var format string

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Render the places of checked history entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if last {
				videos, err := a.storage.ListVideos(1)
				if err != nil {
					return err
				}
				if len(videos) == 0 {
					fmt.Println("Nothing in the local log yet.")
					return nil
				}
				return renderMap(videos[0].Places, width, height, format)
			}

			if err := a.ctrl.RefreshHistory(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "error: %s\n", a.ctrl.Err())
			}
			for _, id := range checked {
				a.ctrl.Toggle(strings.TrimSpace(id), true)
			}
			return renderMap(a.ctrl.VisibleLocations(), width, height, format)
		},
	}

	cmd.Flags().StringSliceVar(&checked, "check", nil, "history entry ids to show")
	cmd.Flags().BoolVar(&last, "last", false, "show the most recently processed video from the local log")
	addRenderFlags(cmd, &width, &height, &format)
	return cmd
}

func localCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "local",
		Short: "List the local log of processed videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			videos, err := a.storage.ListVideos(limit)
			if err != nil {
				return err
			}
			if len(videos) == 0 {
				fmt.Println("Nothing in the local log yet.")
				return nil
			}
			for _, v := range videos {
				title := v.Title
				if title == "" {
					title = v.URL
				}
				fmt.Printf("%s  %s  %s  (%d places)\n", v.ID[:8], v.CreatedAt.Format("2006-01-02"), truncate(title, 50), len(v.Places))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the Pind backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.sessions.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s\n", sess.User.Email)
			return nil
		},
	}

	addCredentialFlags(cmd, &email, &password)
	return cmd
}

func registerCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			sess, err := a.sessions.Register(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Registered and logged in as %s\n", sess.User.Email)
			return nil
		},
	}

	addCredentialFlags(cmd, &email, &password)
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.sessions.Logout()
			fmt.Println("Logged out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if !a.sessions.IsAuthenticated() {
				fmt.Println("Not logged in.")
				return nil
			}
			sess := a.sessions.Current()
			fmt.Printf("Logged in as %s\n", sess.User.Email)
			if exp := a.sessions.ExpiresAt(); !exp.IsZero() {
				fmt.Printf("Token expires %s\n", exp.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func resetPasswordCmd() *cobra.Command {
	var email, token, newPassword string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Request a password reset, or redeem a reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			switch {
			case token != "" && newPassword != "":
				if err := a.api.ResetPassword(cmd.Context(), token, newPassword); err != nil {
					return err
				}
				fmt.Println("Password updated.")
			case email != "":
				if err := a.api.RequestPasswordReset(cmd.Context(), email); err != nil {
					return err
				}
				fmt.Println("Reset instructions sent if the address is registered.")
			default:
				return fmt.Errorf("either --email, or --token with --new-password, is required")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (request a reset)")
	cmd.Flags().StringVar(&token, "token", "", "reset token (redeem a reset)")
	cmd.Flags().StringVar(&newPassword, "new-password", "", "new password (with --token)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local bridge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			// Don't close the store; the server runs indefinitely.

			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			server := api.New(a.ctrl, a.sessions, addr)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config)")
	return cmd
}

func addCredentialFlags(cmd *cobra.Command, email, password *string) {
	cmd.Flags().StringVar(email, "email", "", "account email")
	cmd.Flags().StringVar(password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
}

func addRenderFlags(cmd *cobra.Command, width, height *int, format *string) {
	cmd.Flags().IntVar(width, "width", 1280, "viewport width in pixels")
	cmd.Flags().IntVar(height, "height", 720, "viewport height in pixels")
	cmd.Flags().StringVar(format, "format", "text", "output format: text or geojson")
}

// renderMap prints the fitted viewport and its markers, or the
// empty-state message when there is nothing to show.
func renderMap(visible []domain.Place, width, height int, format string) error {
	markers := mapview.Markers(visible)

	if format == "geojson" {
		return printJSON(mapview.GeoJSON(markers))
	}

	vp, err := mapview.FitBounds(visible, width, height)
	if err != nil {
		fmt.Println(mapview.EmptyStateMessage)
		return nil
	}

	fmt.Printf("Viewport: center (%.4f, %.4f), zoom %.1f\n", vp.CenterLat, vp.CenterLng, vp.Zoom)
	for _, m := range markers {
		fmt.Printf("  %-30s %9.4f, %9.4f\n", m.Place.Name, m.Place.Lat, m.Place.Lng)
	}
	return nil
}

func printJSON(data any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// truncate shortens s to max runes; byte slicing would split multibyte
// characters in non-ASCII titles.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
