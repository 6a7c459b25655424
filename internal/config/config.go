package config

import (
	"os"
	"strconv"
)

// Config holds process-level configuration
type Config struct {
	Port       string
	DBPath     string
	JWTSecret  string
	GeocodeURL string // base URL of the reverse-geocoding service, empty = disabled
}

// Load reads configuration from the environment
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = ":8080"
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/voyager/voyager.db"
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "your-secret-key-change-in-production"
	}

	return &Config{
		Port:       port,
		DBPath:     dbPath,
		JWTSecret:  jwtSecret,
		GeocodeURL: os.Getenv("GEOCODE_URL"),
	}
}

// DetectionConfig is the immutable tuning snapshot passed into every
// processing call. The core never reads hidden global defaults; callers
// hand one of these in per call.
type DetectionConfig struct {
	// Position filter
	AccuracyCeilingMeters           float64 // reject fixes worse than this
	StationaryAccuracyCeilingMeters float64 // relaxed ceiling while stationary
	MaxSpeedMps                     float64 // implied-speed teleport guard
	GapSeconds                      int64   // always accept after this long a silence
	MovementThresholdMeters         float64 // displacement that counts as movement
	StationaryMovementMeters        float64 // larger threshold to absorb drift
	MinUpdateIntervalSeconds        int64   // time-based acceptance floor
	MinDisplacementMeters           float64 // nominal displacement for time-based accepts

	// Stationary mode tracking
	StationaryAfterSeconds int64   // no movement for this long flips to stationary
	StationaryRadiusMeters float64 // "no movement" means staying inside this radius

	// Place clustering
	ClusterRadiusMeters   float64
	SessionGapSeconds     int64 // splits unrelated sessions at the same spot
	MinClusterSize        int
	MinClusterSpanSeconds int64
	MinPlaceRadiusMeters  float64
	MaxPlaceRadiusMeters  float64
	DetectionWindow       int // how many recent positions batch detection reads

	// Visits
	MaxVisitDurationSeconds int64 // force-close guard for stuck visits
	MinVisitDurationSeconds int64
	VisitMergeGapSeconds    int64 // reopen instead of fragmenting within this gap

	// Daily rollups
	DailyResetHour int // local hour at which today's counters roll over

	// Validator
	ValidatorIntervalSeconds int64
}

// DefaultDetectionConfig returns production-tested detection parameters.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		AccuracyCeilingMeters:           50,
		StationaryAccuracyCeilingMeters: 100,
		MaxSpeedMps:                     55,  // ~200 km/h, beyond any plausible ground fix
		GapSeconds:                      600, // accept anything after 10 minutes of silence
		MovementThresholdMeters:         25,
		StationaryMovementMeters:        50,
		MinUpdateIntervalSeconds:        60,
		MinDisplacementMeters:           5,

		StationaryAfterSeconds: 600, // 10 minutes inside the radius
		StationaryRadiusMeters: 30,

		ClusterRadiusMeters:   50,
		SessionGapSeconds:     2700, // 45 minutes
		MinClusterSize:        5,
		MinClusterSpanSeconds: 600,
		MinPlaceRadiusMeters:  30,
		MaxPlaceRadiusMeters:  150,
		DetectionWindow:       2000,

		MaxVisitDurationSeconds: 24 * 3600,
		MinVisitDurationSeconds: 300,
		VisitMergeGapSeconds:    300,

		DailyResetHour: 0,

		ValidatorIntervalSeconds: 30,
	}
}

// LoadDetectionConfig builds a DetectionConfig from defaults with optional
// environment overrides for the most commonly tuned knobs.
func LoadDetectionConfig() DetectionConfig {
	cfg := DefaultDetectionConfig()

	if v := envFloat("ACCURACY_CEILING_M"); v > 0 {
		cfg.AccuracyCeilingMeters = v
	}
	if v := envFloat("CLUSTER_RADIUS_M"); v > 0 {
		cfg.ClusterRadiusMeters = v
	}
	if v := envInt("SESSION_GAP_S"); v > 0 {
		cfg.SessionGapSeconds = v
	}
	if v := envInt("MAX_VISIT_DURATION_S"); v > 0 {
		cfg.MaxVisitDurationSeconds = v
	}
	if v := envInt("VALIDATOR_INTERVAL_S"); v > 0 {
		cfg.ValidatorIntervalSeconds = v
	}

	return cfg
}

func envFloat(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}

func envInt(key string) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
