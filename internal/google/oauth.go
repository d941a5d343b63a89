package google

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"agendabot/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthConfig returns the OAuth2 client configuration for the given scopes.
// It prioritizes explicit client credentials over the client secret file.
func OAuthConfig(clientID, clientSecret, credentialsFile string, scopes []string) (*oauth2.Config, error) {
	if len(scopes) == 0 {
		return nil, fmt.Errorf("%w: no OAuth scopes configured", models.ErrConfiguration)
	}

	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found. Provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET or place the client secret file there", models.ErrConfiguration, credentialsFile)
		}
		return nil, fmt.Errorf("%w: unable to read client secret file: %w", models.ErrConfiguration, err)
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse client secret file to config: %w", models.ErrConfiguration, err)
	}
	return config, nil
}
