package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	gsheet "budgetform/internal/recorder/google"
)

const oauthTimeout = 5 * time.Minute

func newOAuthInitCmd() *cobra.Command {
	var port, tokenFile string
	cmd := &cobra.Command{
		Use:   "oauth-init",
		Short: "Authorize a Google account and save a Sheets token",
		Long: "Runs the OAuth consent flow with the client from GOOGLE_OAUTH_CLIENT_JSON or\n" +
			"GOOGLE_OAUTH_CLIENT_FILE and writes the token for GOOGLE_OAUTH_TOKEN_FILE.\n" +
			"Add http://localhost:<port>/callback to the client's redirect URIs first.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loadConfig()
			if tokenFile == "" {
				tokenFile = os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")
			}
			if tokenFile == "" {
				tokenFile = "token.json"
			}
			cfg, err := gsheet.OAuthConfigFromEnv()
			if err != nil {
				return err
			}
			cfg.RedirectURL = "http://localhost:" + port + "/callback"

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, oauthTimeout)
			defer cancel()

			ln, err := net.Listen("tcp", ":"+port)
			if err != nil {
				return fmt.Errorf("listen for oauth redirect: %w", err)
			}
			tok, err := authorize(ctx, cfg, ln, func(url string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", url)
			})
			if err != nil {
				return err
			}
			if err := saveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "8085", "Local port for the OAuth redirect")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Where to write the token (default: GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	return cmd
}

// authorize serves the redirect endpoint on ln until the provider calls
// back with a code, then exchanges it. ln is closed on return.
func authorize(ctx context.Context, cfg *oauth2.Config, ln net.Listener, prompt func(url string)) (*oauth2.Token, error) {
	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			sendOnce(errCh, fmt.Errorf("authorization denied: %s", q.Get("error")))
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			sendOnce(codeCh, q.Get("code"))
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	prompt(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.New("authorization timed out")
		}
		return nil, errors.New("interrupted")
	}
}

func sendOnce[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
