package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rezamirzaei/norway-weather-wall-influxdb/internal/weather"
)

// defaultAdminPasswordHash is the bcrypt hash of the development-only
// default password. Override ADMIN_PASSWORD_HASH in any real deployment.
const defaultAdminPasswordHash = "$2b$12$sdOU8uwfeIt/6CaZUIM6ke71zg30wHn0r3QC4TDA3xHYwQxTVEEXi"

type AppConfig struct {
	Port string

	// Auth.
	SecretKey         string
	AccessTokenTTL    time.Duration
	AdminUsername     string
	AdminPasswordHash string

	// InfluxDB.
	InfluxURL          string
	InfluxToken        string
	InfluxOrg          string
	InfluxBucket       string
	InfluxMeasurement  string
	WeatherMeasurement string
	InfluxTimeout      time.Duration

	// Weather ingestion.
	WeatherUserAgent          string
	WeatherTimeout            time.Duration
	WeatherMinRefreshInterval int // seconds; 0 disables rate limiting
	BackgroundRefreshEnabled  bool
	BackgroundRefreshInterval time.Duration
	Locations                 []weather.Location
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if len(cfg.SecretKey) < 32 {
		return nil, fmt.Errorf("SECRET_KEY must be set and at least 32 characters")
	}
	cfg.AccessTokenTTL = time.Duration(getenvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute
	cfg.AdminUsername = getenvDefault("ADMIN_USERNAME", "admin")
	cfg.AdminPasswordHash = getenvDefault("ADMIN_PASSWORD_HASH", defaultAdminPasswordHash)

	cfg.InfluxURL = getenvDefault("INFLUX_URL", "http://influxdb:8086")
	cfg.InfluxToken = os.Getenv("INFLUX_TOKEN")
	if cfg.InfluxToken == "" {
		return nil, fmt.Errorf("INFLUX_TOKEN must be set")
	}
	cfg.InfluxOrg = os.Getenv("INFLUX_ORG")
	if cfg.InfluxOrg == "" {
		return nil, fmt.Errorf("INFLUX_ORG must be set")
	}
	cfg.InfluxBucket = os.Getenv("INFLUX_BUCKET")
	if cfg.InfluxBucket == "" {
		return nil, fmt.Errorf("INFLUX_BUCKET must be set")
	}
	cfg.InfluxMeasurement = getenvDefault("INFLUX_MEASUREMENT", "device_metrics")
	cfg.WeatherMeasurement = getenvDefault("WEATHER_MEASUREMENT", "norwegian_weather")

	var err error
	cfg.InfluxTimeout, err = getenvDuration("INFLUX_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.WeatherUserAgent = getenvDefault("WEATHER_USER_AGENT", "norway-weather-wall/0.1 (contact: you@example.com)")
	cfg.WeatherTimeout, err = getenvDuration("WEATHER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.WeatherMinRefreshInterval = getenvInt("WEATHER_MIN_REFRESH_INTERVAL", 300)
	if cfg.WeatherMinRefreshInterval < 0 {
		cfg.WeatherMinRefreshInterval = 0
	}
	cfg.BackgroundRefreshEnabled = getenvBool("WEATHER_BACKGROUND_REFRESH_ENABLED", true)
	cfg.BackgroundRefreshInterval, err = getenvDuration("WEATHER_BACKGROUND_REFRESH_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.Locations, err = loadLocations()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadLocations parses WEATHER_LOCATIONS as comma-separated
// "Name:lat:lon" triples, falling back to the built-in city list.
func loadLocations() ([]weather.Location, error) {
	raw := os.Getenv("WEATHER_LOCATIONS")
	if raw == "" {
		return weather.DefaultLocations, nil
	}

	var locs []weather.Location
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid WEATHER_LOCATIONS entry %q (want Name:lat:lon)", entry)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in WEATHER_LOCATIONS entry %q: %w", entry, err)
		}
		lon, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in WEATHER_LOCATIONS entry %q: %w", entry, err)
		}
		locs = append(locs, weather.Location{Name: parts[0], Lat: lat, Lon: lon})
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
