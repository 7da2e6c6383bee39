package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string
		LogLevel       string
		StreamInterval time.Duration
		CORSOrigins    []string
		FetchRate      float64
		FetchBurst     int
	}
	Database struct {
		Path string
	}
	Download struct {
		DataDir          string
		MaxConcurrent    int
		QueueSize        int
		CleanupDelay     time.Duration
		MaxAge           time.Duration
		SweepSchedule    string
		UserAgent        string
		PlaylistQuality  int
		ProgressInterval time.Duration
	}
	Merge struct {
		FFmpeg          string
		FFprobe         string
		RemuxTimeout    time.Duration
		ReencodeTimeout time.Duration
		BasicTimeout    time.Duration
	}
	Provider struct {
		AutoInstall bool
		CacheTTL    time.Duration
	}
	Storage struct {
		Bucket     string
		KeyPrefix  string
		Region     string
		Endpoint   string
		PresignTTL time.Duration
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		Disabled      bool
		JWTSecret     string
		TokenTTL      time.Duration
		AdminUsername string
		AdminPassword string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("ANYVIDOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:5000")
	v.SetDefault("server.loglevel", "info")
	v.SetDefault("server.streaminterval", "200ms")
	v.SetDefault("server.corsorigins", []string{"*"})
	v.SetDefault("server.fetchrate", 2.0)
	v.SetDefault("server.fetchburst", 5)
	v.SetDefault("database.path", "data/anyvidow.db")
	v.SetDefault("download.datadir", "data/downloads")
	v.SetDefault("download.maxconcurrent", 3)
	v.SetDefault("download.queuesize", 64)
	v.SetDefault("download.cleanupdelay", "5s")
	v.SetDefault("download.maxage", "1h")
	v.SetDefault("download.sweepschedule", "@every 15m")
	v.SetDefault("download.useragent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("download.playlistquality", 1080)
	v.SetDefault("download.progressinterval", "500ms")
	v.SetDefault("merge.ffmpeg", "ffmpeg")
	v.SetDefault("merge.ffprobe", "ffprobe")
	v.SetDefault("merge.remuxtimeout", "5m")
	v.SetDefault("merge.reencodetimeout", "10m")
	v.SetDefault("merge.basictimeout", "10m")
	v.SetDefault("provider.autoinstall", true)
	v.SetDefault("provider.cachettl", "10m")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "anyvidow-archives")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.presignttl", "24h")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", "24h")
	v.SetDefault("auth.adminusername", "admin")
	v.SetDefault("auth.adminpassword", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
