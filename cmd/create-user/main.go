package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"takedown_app_go/config"
	"takedown_app_go/db"
	"takedown_app_go/logger"
	"takedown_app_go/middleware"
	"takedown_app_go/models"
	"takedown_app_go/services"
)

// create-user registers a user without Google sign-in and opens a session
// for them, so the intake flow can be exercised locally.
func main() {
	skipSession := flag.Bool("no-session", false, "only create the user")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if cfg.IsProduction() {
		log.Fatal("create-user is for development databases only")
	}
	zlog := logger.New("", false)
	defer zlog.Sync()

	database, err := db.Open(cfg, logger.Module(zlog, "db"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(database)

	// Run migrations
	if err := db.AutoMigrate(database, &models.User{}, &models.Session{}, &models.Case{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create User ===")
	fmt.Println()

	fmt.Print("Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)

	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)

	if name == "" || email == "" {
		log.Fatal("Name and email are required")
	}

	cases := services.NewCaseStore(database)
	auth := services.NewAuthService(database, cases, cfg, logger.Module(zlog, "auth"))
	user, created, err := auth.UpsertUser(context.Background(), services.GoogleProfile{
		Email:         email,
		Name:          name,
		VerifiedEmail: true,
	})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Println()
	if created {
		fmt.Println("✓ User created")
	} else {
		fmt.Println("✓ Existing user found")
	}
	fmt.Printf("  ID: %s\n", user.ID)
	fmt.Printf("  Email: %s\n", user.Email)
	if services.IsAdmin(user.Email, cfg.AdminEmails) {
		fmt.Println("  Admin: yes")
	}

	if *skipSession {
		return
	}

	session, err := services.CreateSession(database, user.ID, "127.0.0.1", "create-user")
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	fmt.Println()
	fmt.Printf("Set this cookie for %s to sign in:\n", cfg.AppURL)
	fmt.Printf("  %s=%s\n", middleware.SessionCookieName, session.Token)
	fmt.Printf("  expires %s\n", session.ExpiresAt.Format("2006-01-02 15:04 MST"))
}
