package main // dev utility: mint a holder token for manual API testing

import (
    "flag"
    "fmt"
    "log"
    "os"
    "time"

    "github.com/google/uuid"
    "github.com/joho/godotenv"

    "github.com/iliyamo/screening-admission/internal/utils"
)

func main() {
    holder := flag.String("holder", "", "holder id (defaults to a fresh uuid)")
    ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
    flag.Parse()

    _ = godotenv.Load()
    secret := os.Getenv("JWT_SECRET")
    if secret == "" {
        log.Fatal("JWT_SECRET is required")
    }

    id := *holder
    if id == "" {
        id = uuid.NewString()
    }
    tok, err := utils.NewAccessToken(secret, id, *ttl)
    if err != nil {
        log.Fatalf("sign token: %v", err)
    }
    fmt.Printf("holder_id: %s\nexpires:   %s\ntoken:     %s\n", id, tok.Exp.Format(time.RFC3339), tok.Token)
}
