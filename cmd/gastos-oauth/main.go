// Command gastos-oauth authorizes the Sheets mirror against a user account
// and saves the refresh token for gastos-worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"gastos/internal/cli"
	"gastos/internal/config"
	applog "gastos/internal/log"
	gsheet "gastos/internal/sheets/google"

	"golang.org/x/oauth2"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(config.Load(), applog.ComponentSheets)

	cfg, err := gsheet.OAuthConfigFromEnv()
	if err != nil {
		logger.Error("OAuth client unavailable", applog.FieldError, err)
		os.Exit(1)
	}

	// The OAuth client must list this URI among its authorized redirect URIs.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: "localhost:" + redirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Puedes cerrar esta ventana y volver a la terminal.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Callback server failed", applog.FieldError, err)
			os.Exit(1)
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case code := <-codeCh:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			logger.Error("Token exchange failed", applog.FieldError, err)
			os.Exit(1)
		}
		path := gsheet.TokenFile()
		if err := gsheet.SaveToken(path, tok); err != nil {
			logger.Error("Saving token failed", applog.FieldError, err, "path", path)
			os.Exit(1)
		}
		logger.Info("Saved OAuth token", "path", path)
	case <-time.After(5 * time.Minute):
		logger.Error("Authorization timed out")
		os.Exit(1)
	case <-interrupt:
		logger.Error("Interrupted")
		os.Exit(1)
	}
}
