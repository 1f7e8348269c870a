// Package core provides shared constants and helpers for the headlines service.
package core

import (
	"os"
	"time"
)

// News API configuration
const (
	NewsAPIBaseURL = "https://newsdata.io/api/1"
	APIKeyEnvVar   = "NEWS_API_KEY"
)

// Date formats
const (
	DateFmt     = "2006-01-02"
	TimeFmt     = "15:04:05"
	DatetimeFmt = "2006-01-02 15:04:05"
)

// Snapshot file naming: <prefix><YYYY-MM-DD><suffix>
const (
	SnapshotPrefix = "headline_"
	SnapshotSuffix = ".csv"
)

// Resolution defaults
const (
	DefaultMaxAgeHours = 6
	ForcedRefreshWait  = 2 * time.Second // after a forced refresh
	RefreshWait        = 3 * time.Second // after an unforced refresh
	RefreshTimeout     = 30 * time.Second
)

// Fetch defaults
const (
	SummaryMaxChars = 200
	DefaultMaxPages = 1
)

// NegativeKeywords drop an article when found in its title or description.
var NegativeKeywords = []string{
	"lawsuit", "hack", "breach", "shutdown", "failure",
	"cyberattack", "fraud", "crime", "scam", "layoffs",
}

// DefaultTZ is the timezone used to decide what "today" is. Empty means local time.
var DefaultTZ = ""

func init() {
	if tz := os.Getenv("HEADLINES_TZ"); tz != "" {
		DefaultTZ = tz
	}
}

// Version is the current headlines version.
const Version = "0.3.0"
