package config

// Default paths and column labels
const (
	// DefaultKoboDatabasePath is the default path to the device database
	DefaultKoboDatabasePath = "./KoboReader.sqlite"

	// DefaultHistoryDatabasePath is the default path for the local sync history database
	DefaultHistoryDatabasePath = "./shelfsync.db"

	// DefaultRatingsColumn is the Calibre custom column label for ratings
	DefaultRatingsColumn = "myratings"

	// DefaultGenresColumn is the Calibre custom column label for genres
	DefaultGenresColumn = "my_genres"
)
