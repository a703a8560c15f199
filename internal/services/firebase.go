package services

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

const defaultFirebaseCredentials = "./firebase-service-account.json"

// InitFirebase initializes the Firebase Admin SDK and returns an auth
// client. The service account path comes from FIREBASE_CREDENTIALS_PATH,
// falling back to the file next to the binary.
func InitFirebase() (*auth.Client, error) {
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = defaultFirebaseCredentials
	}
	if _, err := os.Stat(credPath); err != nil {
		return nil, fmt.Errorf("firebase credentials not readable at %s: %w", credPath, err)
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	return app.Auth(ctx)
}
