package utils

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DomainName     string
	AllowedOrigins []string
	LimitsFile     string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}

	origins := []string{"*"}
	if raw := os.Getenv("WS_ALLOWED_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				origins = append(origins, origin)
			}
		}
	}

	return &Config{
		DomainName:     os.Getenv("DOMAIN_NAME"),
		AllowedOrigins: origins,
		LimitsFile:     os.Getenv("GAZE_LIMITS_FILE"),
	}
}
