// seed inserts development sample data for local testing. Run via go run ./cmd/seed.
// Idempotent: skips inserts if the dev user (dev) already exists.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pquerna/otp/totp"

	"authsession/internal/config"
	"authsession/internal/db"
	identitydomain "authsession/internal/identity/domain"
	identityrepo "authsession/internal/identity/repository"
	platformdomain "authsession/internal/platformsettings/domain"
	platformrepo "authsession/internal/platformsettings/repository"
	policydomain "authsession/internal/policy/domain"
	policyrepo "authsession/internal/policy/repository"
	"authsession/internal/security"
	twofactordomain "authsession/internal/twofactor/domain"
	twofactorrepo "authsession/internal/twofactor/repository"
	userdomain "authsession/internal/user/domain"
	userrepo "authsession/internal/user/repository"
)

// strictRegoPolicy enforces two-factor for every account. Seeded disabled; enable it to
// make password login over non-interactive clients fail for everyone.
const strictRegoPolicy = `package authsession.two_factor

default enforced := true
`

const (
	devLoginName    = "dev"
	devUserEmail    = "dev@example.com"
	devPassword     = "password123"
	devUserID       = "dev-user-001"
	devUser2ID      = "dev-user-002"
	devIdentityID   = "dev-identity-001"
	devIdentity2ID  = "dev-identity-002"
	devPolicyID     = "dev-policy-001"
	memberLoginName = "member"
	memberEmail     = "member@example.com"
)

func main() {
	enrollTOTP := flag.Bool("totp", false, "enroll the member user in TOTP so non-interactive password login is refused")
	tokenAuth := flag.Bool("token-auth", false, "set the token_auth_enforced platform setting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	identities := identityrepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByLoginName(ctx, devLoginName)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	seedUsers := []struct {
		user     *userdomain.User
		identity *identitydomain.Identity
	}{
		{
			user: &userdomain.User{
				ID: devUserID, LoginName: devLoginName, Email: devUserEmail, DisplayName: "Dev User",
				Status: userdomain.UserStatusActive, CreatedAt: now, UpdatedAt: now,
			},
			identity: &identitydomain.Identity{
				ID: devIdentityID, UserID: devUserID, Provider: identitydomain.IdentityProviderLocal,
				ProviderID: devLoginName, PasswordHash: passwordHash, CreatedAt: now,
			},
		},
		{
			user: &userdomain.User{
				ID: devUser2ID, LoginName: memberLoginName, Email: memberEmail, DisplayName: "Member User",
				Status: userdomain.UserStatusActive, CreatedAt: now, UpdatedAt: now,
			},
			identity: &identitydomain.Identity{
				ID: devIdentity2ID, UserID: devUser2ID, Provider: identitydomain.IdentityProviderLocal,
				ProviderID: memberLoginName, PasswordHash: passwordHash, CreatedAt: now,
			},
		},
	}
	for _, s := range seedUsers {
		if err := users.Create(ctx, s.user); err != nil {
			log.Fatalf("create user %s: %v", s.user.LoginName, err)
		}
		if err := identities.Create(ctx, s.identity); err != nil {
			log.Fatalf("create identity %s: %v", s.user.LoginName, err)
		}
	}

	if err := policyrepo.NewPostgresRepository(conn).Create(ctx, &policydomain.Policy{
		ID:        devPolicyID,
		Name:      "enforce two-factor for everyone",
		Rules:     strictRegoPolicy,
		Enabled:   false,
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("create policy: %v", err)
	}

	if *tokenAuth {
		if err := platformrepo.NewPostgresRepository(conn).Set(ctx, platformdomain.TokenAuthEnforced, "true"); err != nil {
			log.Fatalf("set platform setting: %v", err)
		}
	}

	if *enrollTOTP {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: cfg.ServiceName, AccountName: memberLoginName})
		if err != nil {
			log.Fatalf("generate totp: %v", err)
		}
		if err := twofactorrepo.NewPostgresRepository(conn).Upsert(ctx, &twofactordomain.Enrollment{
			UserID:    devUser2ID,
			Provider:  twofactordomain.ProviderTOTP,
			Secret:    key.Secret(),
			Enabled:   true,
			CreatedAt: now,
		}); err != nil {
			log.Fatalf("enroll totp: %v", err)
		}
		fmt.Printf("Member TOTP: %s\n", key.URL())
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s\n", devLoginName, devPassword)
	fmt.Printf("Member login: %s / %s\n", memberLoginName, devPassword)
}
