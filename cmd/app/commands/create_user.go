package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/splitrx/splitrx/internal/app"
	"github.com/splitrx/splitrx/internal/config"
	userDomain "github.com/splitrx/splitrx/internal/user/domain"
	userUsecase "github.com/splitrx/splitrx/internal/user/usecase"
)

// RunCreateUser registers a new user account from the command line. A fresh
// RSA key pair is generated for the account and the registration is recorded
// in the audit ledger, same as registrations through the HTTP API.
//
// Requirements: Database must be migrated and accessible.
func RunCreateUser(ctx context.Context, email, password, fullName, role, license, format string) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(container, logger)

	userUseCase, err := container.UserUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize user use case: %w", err)
	}

	input := userUsecase.RegisterInput{
		Email:         email,
		Password:      password,
		FullName:      fullName,
		Role:          role,
		LicenseNumber: license,
	}

	return createUser(ctx, userUseCase, logger, os.Stdout, input, format)
}

// createUser executes the registration and writes the result to writer.
func createUser(
	ctx context.Context,
	userUseCase userUsecase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	input userUsecase.RegisterInput,
	format string,
) error {
	logger.Info("creating user",
		slog.String("email", input.Email),
		slog.String("role", input.Role),
	)

	user, err := userUseCase.Register(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if format == "json" {
		if err := outputUserJSON(writer, user); err != nil {
			return fmt.Errorf("failed to output JSON: %w", err)
		}
	} else {
		outputUserText(writer, user)
	}

	logger.Info("user created", slog.String("user_id", user.ID.String()))
	return nil
}

// outputUserText outputs the created user in human-readable text format.
func outputUserText(writer io.Writer, user *userDomain.User) {
	_, _ = fmt.Fprintf(writer, "User created successfully\n")
	_, _ = fmt.Fprintf(writer, "=========================\n\n")
	_, _ = fmt.Fprintf(writer, "ID:        %s\n", user.ID)
	_, _ = fmt.Fprintf(writer, "Email:     %s\n", user.Email)
	_, _ = fmt.Fprintf(writer, "Full Name: %s\n", user.FullName)
	_, _ = fmt.Fprintf(writer, "Role:      %s\n", user.Role)
	if user.LicenseNumber != nil {
		_, _ = fmt.Fprintf(writer, "License:   %s\n", *user.LicenseNumber)
	}
	_, _ = fmt.Fprintf(writer, "\nPublic Key:\n%s\n", user.PublicKeyPEM)
}

// outputUserJSON outputs the created user in JSON format for machine consumption.
func outputUserJSON(writer io.Writer, user *userDomain.User) error {
	result := map[string]interface{}{
		"id":             user.ID.String(),
		"email":          user.Email,
		"full_name":      user.FullName,
		"role":           user.Role,
		"public_key_pem": user.PublicKeyPEM,
	}
	if user.LicenseNumber != nil {
		result["license_number"] = *user.LicenseNumber
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
	return nil
}
