package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Kobo
		Libraries
		Columns
		Classification
		Backup
		Report
		History
		Watch
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Kobo struct {
		DatabasePath string
	}
	Libraries struct {
		SearchPaths []string // Directories scanned recursively for metadata.db
		Paths       []string // Explicitly registered library directories
		Primary     string   // Library name treated as primary
	}
	Columns struct {
		Ratings string // Custom column label for ratings
		Genres  string // Custom column label for genres
	}
	Classification struct {
		MappingFile string // Optional JSON file overriding the rating mapping
	}
	Backup struct {
		Dir string
	}
	Report struct {
		Dir string
	}
	History struct {
		DatabasePath string
	}
	Watch struct {
		Schedule string // Cron format: "0 * * * *" = hourly
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8199)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("kobo_database_path", DefaultKoboDatabasePath)
	v.SetDefault("library_search_paths", "")
	v.SetDefault("library_paths", "")
	v.SetDefault("primary_library", "")
	v.SetDefault("ratings_column", DefaultRatingsColumn)
	v.SetDefault("genres_column", DefaultGenresColumn)
	v.SetDefault("rating_mapping_file", "")
	v.SetDefault("backup_dir", "./backups")
	v.SetDefault("report_dir", "./reports")
	v.SetDefault("history_database_path", DefaultHistoryDatabasePath)
	v.SetDefault("watch_schedule", "0 * * * *") // Hourly at :00

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Kobo: Kobo{
			DatabasePath: v.GetString("KOBO_DATABASE_PATH"),
		},
		Libraries: Libraries{
			SearchPaths: splitPaths(v.GetString("LIBRARY_SEARCH_PATHS")),
			Paths:       splitPaths(v.GetString("LIBRARY_PATHS")),
			Primary:     v.GetString("PRIMARY_LIBRARY"),
		},
		Columns: Columns{
			Ratings: v.GetString("RATINGS_COLUMN"),
			Genres:  v.GetString("GENRES_COLUMN"),
		},
		Classification: Classification{
			MappingFile: v.GetString("RATING_MAPPING_FILE"),
		},
		Backup: Backup{
			Dir: v.GetString("BACKUP_DIR"),
		},
		Report: Report{
			Dir: v.GetString("REPORT_DIR"),
		},
		History: History{
			DatabasePath: v.GetString("HISTORY_DATABASE_PATH"),
		},
		Watch: Watch{
			Schedule: v.GetString("WATCH_SCHEDULE"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}

// splitPaths splits a comma-separated path list from the environment
func splitPaths(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var paths []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	return paths
}

// RatingMapping is the classification configuration: raw collection names
// mapped to canonical rating labels, plus the precedence order used when a
// single book carries more than one rating collection.
type RatingMapping struct {
	Collections map[string]string
	Precedence  []string
}

// DefaultRatingMapping mirrors the rating shelves observed on the device.
func DefaultRatingMapping() RatingMapping {
	return RatingMapping{
		Collections: map[string]string{
			"| evergreen":         "Evergreen",
			"| absolute favorite": "Absolute Favorite",
			"| favorite":          "Favorites",
			"| good":              "Great",
		},
	}
}

// LoadRatingMapping reads the rating mapping from the configured JSON file,
// falling back to the defaults when no file is configured.
func LoadRatingMapping(path string) (RatingMapping, error) {
	if path == "" {
		return DefaultRatingMapping(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return RatingMapping{}, fmt.Errorf("failed to read rating mapping %s: %w", path, err)
	}

	mapping := RatingMapping{
		Collections: v.GetStringMapString("rating_collections"),
		Precedence:  v.GetStringSlice("rating_precedence"),
	}
	if len(mapping.Collections) == 0 {
		mapping.Collections = DefaultRatingMapping().Collections
	}
	return mapping, nil
}

// ShutdownTimeout returns the graceful shutdown timeout as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Global.ShutdownTimeoutInSeconds) * time.Second
}
