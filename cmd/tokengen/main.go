// Command tokengen mints a bearer token for local testing of the hub.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"shyra-hub-be/pkg/auth"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	id := flag.String("id", "", "entity id (required)")
	entityType := flag.String("type", auth.EntityUser, "entity type: USER or DEVICE")
	role := flag.String("role", "user", "role claim")
	deviceType := flag.String("device-type", "", "device type claim (DEVICE only)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *id == "" {
		flag.Usage()
		os.Exit(2)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_secret"
	}

	token, err := auth.NewJWTManager(secret).Issue(auth.Identity{
		Id:         *id,
		EntityType: strings.ToUpper(*entityType),
		Role:       *role,
		DeviceType: *deviceType,
	}, *ttl)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
}
