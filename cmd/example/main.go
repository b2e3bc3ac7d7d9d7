package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	orca "github.com/frjonsen/orca"
)

func main() {
	// Get credentials from environment variables
	clientID := os.Getenv("REDDIT_CLIENT_ID")
	clientSecret := os.Getenv("REDDIT_CLIENT_SECRET")
	username := os.Getenv("REDDIT_USERNAME")
	password := os.Getenv("REDDIT_PASSWORD")

	if clientID == "" {
		log.Fatal("REDDIT_CLIENT_ID environment variable is required")
	}

	// Route structured logs to stdout; adjust the level as needed.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	userAgent := "orca-example/1.0 by YourUsername"

	auth, err := orca.NewAuthorizer(&orca.Config{
		UserAgent: userAgent,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create authorizer: %v", err)
	}

	conn := orca.NewConnection(&orca.ConnectionConfig{
		UserAgent: userAgent,
		Logger:    logger,
	})

	// With a secret and account credentials this is a script app; without
	// them it is an installed app and the flow goes through the browser.
	var creds orca.Credentials
	if clientSecret != "" && username != "" && password != "" {
		creds = orca.ScriptApp{
			ID:       clientID,
			Secret:   clientSecret,
			Username: username,
			Password: password,
		}
	} else {
		fmt.Println("No script credentials set; starting the browser flow.")
		fmt.Println("The app's registered redirect URI must be", orca.DefaultRedirectURI)
		creds = orca.InstalledApp{ID: clientID}
	}

	ctx := context.Background()
	session, err := auth.Authorize(ctx, conn, creds)
	if err != nil {
		log.Fatalf("Authorization failed: %v", err)
	}

	fmt.Printf("Authorized as a %s app\n", session.Type())
	fmt.Printf("Access token: %s...\n", session.Token()[:8])
	if expiresAt, ok := session.ExpiresAt(); ok {
		fmt.Printf("Token expires at %s\n", expiresAt.Format(time.RFC3339))

		// Installed-app tokens can be refreshed in place.
		if err := session.Refresh(ctx, conn); err != nil {
			log.Fatalf("Refresh failed: %v", err)
		}
		if refreshed, ok := session.ExpiresAt(); ok {
			fmt.Printf("Refreshed; token now expires at %s\n", refreshed.Format(time.RFC3339))
		}
	}
}
