package sync

import (
	"fmt"
	"os"

	"opscrm-backend/lib/browser"
	"opscrm-backend/lib/configutil"
)

// Config is built once at process start and handed to constructors;
// nothing in the pipeline reads the environment after this point.
type Config struct {
	BackofficeURL string `json:"backoffice_url"`
	DownloadDir   string `json:"download_dir"`
	ScreenshotDir string `json:"screenshot_dir"`
	Headless      bool   `json:"headless"`

	// secrets, environment only
	Credentials    browser.Credentials `json:"-"`
	SupabaseURL    string              `json:"-"`
	ServiceRoleKey string              `json:"-"`
	DatabaseDSN    string              `json:"-"`
	ChromePath     string              `json:"-"`
}

// ConfigFromEnv merges the opscrm.json5 config file (searched upward
// from the working directory) with the process environment.
func ConfigFromEnv() (Config, error) {
	cfg, err := configutil.ReadRecursively[Config]("opscrm.json5")
	if err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = ".data/downloads"
	}
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = ".data/screenshots"
	}

	cfg.Credentials = browser.Credentials{
		Username: os.Getenv("BACKOFFICE_USERNAME"),
		Password: os.Getenv("BACKOFFICE_PASSWORD"),
	}
	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	cfg.ServiceRoleKey = os.Getenv("SUPABASE_SERVICE_ROLE_KEY")
	cfg.DatabaseDSN = os.Getenv("SUPABASE_DB_DSN")
	cfg.ChromePath = os.Getenv("CHROME_EXECUTABLE")

	if cfg.BackofficeURL == "" {
		return Config{}, fmt.Errorf("backoffice_url missing from opscrm.json5")
	}
	if cfg.Credentials.Username == "" || cfg.Credentials.Password == "" {
		return Config{}, fmt.Errorf("BACKOFFICE_USERNAME / BACKOFFICE_PASSWORD not set")
	}
	if cfg.DatabaseDSN == "" && (cfg.SupabaseURL == "" || cfg.ServiceRoleKey == "") {
		return Config{}, fmt.Errorf("either SUPABASE_DB_DSN or SUPABASE_URL + SUPABASE_SERVICE_ROLE_KEY must be set")
	}
	return cfg, nil
}
