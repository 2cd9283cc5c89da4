package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "ROASTREEL_CONFIG"

// Config holds every setting the service reads at startup.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Paths    PathsConfig    `yaml:"paths"`
	Cache    CacheConfig    `yaml:"cache"`
	Profile  ProfileConfig  `yaml:"profile"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Speech   SpeechConfig   `yaml:"speech"`
	Video    VideoConfig    `yaml:"video"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	AllowOrigins string `yaml:"allowOrigins"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PathsConfig locates local state. ScratchDir holds one workspace per request.
type PathsConfig struct {
	CacheDir            string `yaml:"cacheDir"`
	ScratchDir          string `yaml:"scratchDir"`
	DefaultProfileImage string `yaml:"defaultProfileImage"`
	FontFile            string `yaml:"fontFile"`
}

// Cache backends.
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
)

type CacheConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDb"`
}

type ProfileConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	APIHost string `yaml:"apiHost"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
}

type SpeechConfig struct {
	ElevenLabsAPIKey  string `yaml:"elevenLabsApiKey"`
	ElevenLabsBaseURL string `yaml:"elevenLabsBaseUrl"`
	VoiceID           string `yaml:"voiceId"`
	ModelID           string `yaml:"modelId"`
	DeepgramAPIKey    string `yaml:"deepgramApiKey"`
	DeepgramBaseURL   string `yaml:"deepgramBaseUrl"`
	DeepgramModel     string `yaml:"deepgramModel"`
}

type VideoConfig struct {
	BaseVideoURL    string `yaml:"baseVideoUrl"`
	FFmpegPath      string `yaml:"ffmpegPath"`
	FFprobePath     string `yaml:"ffprobePath"`
	RenderWorkers   int    `yaml:"renderWorkers"`
	RenderQueueSize int    `yaml:"renderQueueSize"`
}

type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"serviceKey"`
	Bucket     string `yaml:"bucket"`
	RunsTable  string `yaml:"runsTable"`
}

// TimeoutsConfig bounds each pipeline stage.
type TimeoutsConfig struct {
	Profile    time.Duration `yaml:"profile"`
	Commentary time.Duration `yaml:"commentary"`
	Speech     time.Duration `yaml:"speech"`
	Render     time.Duration `yaml:"render"`
	Upload     time.Duration `yaml:"upload"`
}

// Load reads defaults, then an optional YAML file named by ROASTREEL_CONFIG,
// then .env and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			AllowOrigins: "*",
		},
		Logging: LoggingConfig{Level: "info"},
		Paths: PathsConfig{
			CacheDir:            "cache",
			ScratchDir:          os.TempDir(),
			DefaultProfileImage: "assets/default_profile.jpg",
			FontFile:            "assets/KOMIKAX_.ttf",
		},
		Cache: CacheConfig{
			Backend:   CacheBackendFile,
			RedisAddr: "localhost:6379",
		},
		Profile: ProfileConfig{
			BaseURL: "https://linkedin-data-api.p.rapidapi.com/",
			APIHost: "linkedin-data-api.p.rapidapi.com",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4",
		},
		Speech: SpeechConfig{
			ElevenLabsBaseURL: "https://api.elevenlabs.io",
			VoiceID:           "1SM7GgM6IMuvQlz2BwM3",
			ModelID:           "eleven_turbo_v2_5",
			DeepgramBaseURL:   "https://api.deepgram.com",
			DeepgramModel:     "nova-2",
		},
		Video: VideoConfig{
			BaseVideoURL:    "https://drive.google.com/file/d/1tbH-PBdQPM1Ya_hmiq0MKn3WKFuLZ54K/view?usp=sharing",
			FFmpegPath:      "ffmpeg",
			FFprobePath:     "ffprobe",
			RenderWorkers:   2,
			RenderQueueSize: 8,
		},
		Supabase: SupabaseConfig{
			Bucket: "videos",
		},
		Timeouts: TimeoutsConfig{
			Profile:    30 * time.Second,
			Commentary: 60 * time.Second,
			Speech:     120 * time.Second,
			Render:     10 * time.Minute,
			Upload:     2 * time.Minute,
		},
	}
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setString(&c.Logging.Level, "LOG_LEVEL")

	setString(&c.Paths.CacheDir, "CACHE_DIR")
	setString(&c.Paths.ScratchDir, "SCRATCH_DIR")
	setString(&c.Paths.DefaultProfileImage, "DEFAULT_PROFILE_IMAGE")
	setString(&c.Paths.FontFile, "CAPTION_FONT_FILE")

	setString(&c.Cache.Backend, "CACHE_BACKEND")
	setString(&c.Cache.RedisAddr, "REDIS_ADDR")
	setString(&c.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.Cache.RedisDB, "REDIS_DB")

	setString(&c.Profile.BaseURL, "PROFILE_API_URL")
	setString(&c.Profile.APIKey, "RAPIDAPI_KEY")
	setString(&c.Profile.APIHost, "RAPIDAPI_HOST")

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")

	setString(&c.Speech.ElevenLabsAPIKey, "ELEVENLABS_API_KEY")
	setString(&c.Speech.ElevenLabsBaseURL, "ELEVENLABS_BASE_URL")
	setString(&c.Speech.VoiceID, "VOICE_ID")
	setString(&c.Speech.DeepgramAPIKey, "DEEPGRAM_API_KEY")
	setString(&c.Speech.DeepgramBaseURL, "DEEPGRAM_BASE_URL")

	setString(&c.Video.BaseVideoURL, "BASE_VIDEO_URL")
	setString(&c.Video.FFmpegPath, "FFMPEG_PATH")
	setString(&c.Video.FFprobePath, "FFPROBE_PATH")
	setInt(&c.Video.RenderWorkers, "RENDER_WORKERS")
	setInt(&c.Video.RenderQueueSize, "RENDER_QUEUE_SIZE")

	setString(&c.Supabase.URL, "SUPABASE_URL")
	setString(&c.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setString(&c.Supabase.Bucket, "SUPABASE_BUCKET")
	setString(&c.Supabase.RunsTable, "SUPABASE_RUNS_TABLE")
}

// Validate checks the credentials every request needs.
func (c *Config) Validate() error {
	var missing []string
	if c.Profile.APIKey == "" {
		missing = append(missing, "RAPIDAPI_KEY")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Speech.ElevenLabsAPIKey == "" {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}
	if c.Speech.DeepgramAPIKey == "" {
		missing = append(missing, "DEEPGRAM_API_KEY")
	}
	if c.Supabase.URL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Supabase.ServiceKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q (want file or redis)", c.Cache.Backend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
