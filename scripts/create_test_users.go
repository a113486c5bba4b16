package main

import (
	"context"
	"fmt"
	"log"

	"github.com/Auremas/voxanalyze-mvp/internal/adapter/repository"
	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
	"github.com/Auremas/voxanalyze-mvp/internal/infrastructure/database"
	"github.com/Auremas/voxanalyze-mvp/pkg/config"
	pkgjwt "github.com/Auremas/voxanalyze-mvp/pkg/jwt"
)

func main() {
	log.Println("🚀 Starting test users creation...")

	// Load configuration from .env
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	log.Println("✅ Database connected successfully")

	// Initialize JWT manager
	jwtManager := pkgjwt.NewManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)

	userRepo := repository.NewUserRepository(db)
	ctx := context.Background()

	// Define test users
	testUsers := []struct {
		Email string
		Name  string
		Role  entities.UserRole
	}{
		{Email: "supervisor@test.local", Name: "Rasa", Role: entities.RoleAdmin},
		{Email: "agent1@test.local", Name: "Jonas", Role: entities.RoleAgent},
		{Email: "agent2@test.local", Name: "Greta", Role: entities.RoleAgent},
	}

	log.Println("🗑️  Cleaning up existing test users...")
	db.Where("user_id IN (SELECT id FROM users WHERE email LIKE ?)", "%@test.local").Delete(&entities.Call{})
	db.Where("email LIKE ?", "%@test.local").Delete(&entities.User{})

	log.Println("🔑 Creating test users and tokens...")

	for i, testUser := range testUsers {
		user := entities.NewUser(testUser.Email, testUser.Name)
		user.Role = testUser.Role

		if err := userRepo.Create(ctx, user); err != nil {
			log.Printf("❌ Failed to create user %s: %v", testUser.Email, err)
			continue
		}

		accessToken, err := jwtManager.GenerateAccessToken(user.ID, user.Email, string(user.Role))
		if err != nil {
			log.Printf("❌ Failed to generate access token for %s: %v", testUser.Email, err)
			continue
		}

		refreshToken, err := jwtManager.GenerateRefreshToken(user.ID)
		if err != nil {
			log.Printf("❌ Failed to generate refresh token for %s: %v", testUser.Email, err)
			continue
		}

		// Sanity check the minted token round-trips before handing it out.
		if subject, err := jwtManager.ValidateRefreshToken(refreshToken); err != nil || subject != user.ID {
			log.Printf("❌ Refresh token for %s failed validation: %v", testUser.Email, err)
			continue
		}

		refreshHash, err := jwtManager.HashToken(refreshToken)
		if err != nil {
			log.Printf("❌ Failed to hash refresh token for %s: %v", testUser.Email, err)
			continue
		}

		fmt.Printf("═══════════════════════════════════════════════════════\n")
		fmt.Printf("🟢 User %d: %s\n", i+1, testUser.Name)
		fmt.Printf("═══════════════════════════════════════════════════════\n")
		fmt.Printf("Email:        %s\n", user.Email)
		fmt.Printf("User ID:      %s\n", user.ID)
		fmt.Printf("Role:         %s\n", user.Role)
		fmt.Printf("\n📋 Access Token (Copy to Postman):\n")
		fmt.Printf("%s\n", accessToken)
		fmt.Printf("\n🔄 Refresh Token:\n")
		fmt.Printf("%s\n", refreshToken)
		fmt.Printf("\n🔒 Refresh Token Hash (stored form):\n")
		fmt.Printf("%s\n", refreshHash)
		fmt.Printf("───────────────────────────────────────────────────────\n\n")
	}

	log.Println("✅ All test users created successfully!")
	log.Println("💡 Usage:")
	log.Println("   1. Copy the Access Token above")
	log.Println("   2. Set header: Authorization: Bearer <access_token>")
	log.Println("   3. Token expiry:", cfg.JWT.AccessExpiry)
	log.Println("🧹 To clean up test users, run: DELETE FROM users WHERE email LIKE '%@test.local'")
}
