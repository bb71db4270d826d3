// mintcode is an admin CLI for minting bonus-credit redemption codes.
//
// Usage:
//
//	mintcode -tier SM -count 5
//
// The HMAC secret comes from -secret or the PROMO_CODE_SECRET environment
// variable, and must match the server's.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"blogpulse/internal/promo"

	"github.com/joho/godotenv"
)

func main() {
	tier := flag.String("tier", "SM", "code tier: SM, MD, LG, XL (unknown tiers grant the default bonus)")
	count := flag.Int("count", 1, "number of codes to mint")
	secret := flag.String("secret", "", "HMAC secret (defaults to PROMO_CODE_SECRET)")
	flag.Parse()

	godotenv.Load()

	key := *secret
	if key == "" {
		key = os.Getenv("PROMO_CODE_SECRET")
	}
	if key == "" {
		log.Fatal("No secret: pass -secret or set PROMO_CODE_SECRET")
	}

	now := time.Now()
	for i := 0; i < *count; i++ {
		code, err := promo.Mint(*tier, now, key)
		if err != nil {
			log.Fatalf("Mint failed: %v", err)
		}
		fmt.Println(code)
	}
}
