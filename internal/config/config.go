package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splits the extension allow-list
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and costs, a set for the upload allow-list.
type Config struct {
	Env               string          // application environment (e.g. "dev", "prod")
	Port              string          // HTTP port to listen on
	DBUser            string          // database username
	DBPass            string          // database password (optional)
	DBHost            string          // database host address
	DBPort            string          // database port number
	DBName            string          // database name
	JWTSecret         string          // secret used to sign JWTs
	AccessTTLMin      int             // access token time-to-live in minutes
	RefreshTTLDays    int             // refresh token time-to-live in days
	BcryptCost        int             // bcrypt cost for password hashing
	BaseURL           string          // public base URL embedded in verification and download links
	UploadDir         string          // directory where file bytes are stored
	GrantTTLMin       int             // download grant time-to-live in minutes
	GrantRetentionMin int             // extra minutes expired grants are retained before GC
	GrantTokenBytes   int             // entropy of a download grant token in bytes
	AllowedExtensions map[string]bool // lower-cased upload extension allow-list
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Values with safe
// defaults (grant TTL, allow-list, upload directory) fall back silently.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"), // empty allowed
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		AccessTTLMin:      mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:    mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:        mustInt("BCRYPT_COST"),
		BaseURL:           getenv("BASE_URL", "http://localhost:8080"),
		UploadDir:         getenv("UPLOAD_DIR", "uploads"),
		GrantTTLMin:       envInt("GRANT_TTL_MIN", 30),
		GrantRetentionMin: envInt("GRANT_RETENTION_MIN", 60),
		GrantTokenBytes:   envInt("GRANT_TOKEN_BYTES", 32), // 32 bytes = 256 bits
		AllowedExtensions: parseExtensions(getenv("ALLOWED_EXTENSIONS", "pptx,docx,xlsx")),
	}
}

// parseExtensions turns a comma-separated list into a lower-cased set.
// Leading dots are stripped so ".docx" and "docx" configure the same thing.
func parseExtensions(s string) map[string]bool {
	set := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(p)), ".")
		if p != "" {
			set[p] = true
		}
	}
	return set
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}
