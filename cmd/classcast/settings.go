package main

import (
	"strings"

	"github.com/goevery/classcast/internal/classroom"
)

type Settings struct {
	Port               int    `env:"PORT,default=8000"`
	BasePath           string `env:"BASE_PATH,default=/classcast"`
	LogEncoding        string `env:"LOG_ENCODING,default=console"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	JWTSecret          string `env:"JWT_SECRET"`
	APIKeys            string `env:"API_KEYS"`
	AllowedOrigins     string `env:"ALLOWED_ORIGINS"`
	SubscriptionPolicy string `env:"SUBSCRIPTION_POLICY,default=replace"`
	SendBufferSize     int    `env:"SEND_BUFFER_SIZE,default=64"`
}

func (s Settings) APIKeyList() []string {
	return splitList(s.APIKeys)
}

func (s Settings) AllowedOriginList() []string {
	return splitList(s.AllowedOrigins)
}

func (s Settings) Policy() (classroom.Policy, error) {
	return classroom.ParsePolicy(s.SubscriptionPolicy)
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
