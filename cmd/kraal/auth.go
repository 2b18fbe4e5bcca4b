package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kraal-market/client/internal/api"
	"github.com/kraal-market/client/internal/domain"
	"github.com/kraal-market/client/internal/session"
)

func loginCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("login", "kraal login --email you@example.com --password secret")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fs.Usage()
		return fmt.Errorf("--email and --password are required")
	}

	profile, err := a.session.Login(ctx, api.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", profile.DisplayName(), joinRoles(profile.Roles))
	return nil
}

func registerCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register", "kraal register --email you@example.com --password secret [--roles buyer,seller]")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (6 characters minimum)")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	phone := fs.String("phone", "", "phone number")
	roles := fs.String("roles", "buyer", "comma-separated roles: buyer, seller, agent")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fs.Usage()
		return fmt.Errorf("--email and --password are required")
	}

	profile, err := a.session.Register(ctx, api.RegisterInput{
		Email:     *email,
		Phone:     *phone,
		Password:  *password,
		FirstName: *first,
		LastName:  *last,
		Roles:     parseRoles(*roles),
	})
	if err != nil {
		return err
	}
	fmt.Printf("welcome, %s (registered as %s)\n", profile.DisplayName(), joinRoles(profile.Roles))
	return nil
}

func logoutCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("logout", "kraal logout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func whoamiCommand(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("whoami", "kraal whoami [--refresh]")
	refresh := fs.Bool("refresh", false, "revalidate against the backend even inside the recheck window")
	if err := fs.Parse(args); err != nil {
		return err
	}

	profile, err := a.session.LoadProfile(ctx, *refresh)
	if errors.Is(err, session.ErrNotAuthenticated) {
		fmt.Println("not signed in")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s <%s>\n", profile.DisplayName(), profile.Email)
	fmt.Printf("  id:       %s\n", profile.ID)
	fmt.Printf("  roles:    %s\n", joinRoles(profile.Roles))
	fmt.Printf("  verified: %t\n", profile.Verified)
	if profile.Phone != "" {
		fmt.Printf("  phone:    %s\n", profile.Phone)
	}
	fmt.Printf("  session:  %s (checked %s)\n", a.session.Status(), formatTime(a.session.LastCheckedAt()))
	return nil
}

func parseRoles(raw string) []domain.Role {
	parts := strings.Split(raw, ",")
	roles := make([]domain.Role, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		roles = append(roles, domain.Role(part))
	}
	return roles
}

func joinRoles(roles []domain.Role) string {
	if len(roles) == 0 {
		return "no roles"
	}
	parts := make([]string, len(roles))
	for i, role := range roles {
		parts[i] = string(role)
	}
	return strings.Join(parts, ", ")
}
