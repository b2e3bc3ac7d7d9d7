// Package orca issues and maintains OAuth2 credentials for a Reddit client
// under the two client-side trust models Reddit supports.
//
// # Overview
//
// A script app is a confidential client: it keeps a secret and authorizes
// as the one account that registered it, in a single password-grant
// exchange. An installed app is a public client: it has no secret, so the
// user authorizes interactively in a browser and the app captures the
// resulting authorization code on an ephemeral loopback HTTP listener,
// verifies the CSRF state parameter, and exchanges the code for tokens.
//
// Either flow produces a *Session holding the live token state. Installed
// sessions also carry a refresh token and expiry, and are refreshed in
// place so the long-lived connection sharing them never holds a stale
// reference.
//
// # Quick start
//
// Script apps authorize synchronously:
//
//	auth, err := orca.NewAuthorizer(&orca.Config{
//		UserAgent: "myapp/1.0 by /u/myusername",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	conn := orca.NewConnection(&orca.ConnectionConfig{
//		UserAgent: "myapp/1.0 by /u/myusername",
//	})
//
//	session, err := auth.Authorize(ctx, conn, orca.ScriptApp{
//		ID:       "your-app-id",
//		Secret:   "your-app-secret",
//		Username: "your-username",
//		Password: "your-password",
//	})
//
// Installed apps open the system browser and block until the user finishes
// (or the configured timeout elapses):
//
//	session, err := auth.Authorize(ctx, conn, orca.InstalledApp{
//		ID: "your-app-id",
//	})
//
// The registered redirect URI must match orca.DefaultRedirectURI (or the
// InstalledApp.RedirectURI you configure) exactly, scheme, host, and port
// included.
//
// # Token lifetime
//
// Script tokens are not tracked as expiring; re-authorize if one is
// rejected. Installed-app tokens expire; call Session.Refresh before
// Session.ExpiresAt elapses to swap in a fresh token in place.
package orca
