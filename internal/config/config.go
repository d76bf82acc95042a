package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed recognition.yaml
var recognitionYAML []byte

type Config struct {
	Database    DatabaseConfig
	FaceService FaceServiceConfig
	Recognition RecognitionConfig
	Storage     StorageConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type FaceServiceConfig struct {
	URL     string        // defaults to http://localhost:8000
	Timeout time.Duration // per request, defaults to 30s
}

type RecognitionConfig struct {
	Metric         string  `yaml:"metric"`          // euclidean or cosine
	Tolerance      float64 `yaml:"tolerance"`       // max distance counted as a match
	FrameScale     float64 `yaml:"frame_scale"`     // live frame downscale factor, 1 disables
	SampleInterval int     `yaml:"sample_interval"` // video frames between matches
	EmbeddingModel string  `yaml:"embedding_model"` // cache key namespace for reference embeddings
	CacheEmbedding bool    `yaml:"-"`               // cache reference embeddings in PostgreSQL
}

type StorageConfig struct {
	StudentImageDir string // reference images, defaults to ./students
	FFmpegPath      string // defaults to ffmpeg on PATH
	FFprobePath     string // defaults to ffprobe on PATH
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString returns the env var or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envBool parses an env var with strconv.ParseBool, falling back to the default.
func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

// defaultRecognition parses the embedded defaults.
func defaultRecognition() RecognitionConfig {
	rc := RecognitionConfig{
		Metric:         "euclidean",
		Tolerance:      constants.DefaultEuclideanTolerance,
		FrameScale:     constants.DefaultFrameScale,
		SampleInterval: constants.DefaultSampleInterval,
	}
	if err := yaml.Unmarshal(recognitionYAML, &rc); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded recognition.yaml: " + err.Error())
	}
	return rc
}

func Load() *Config {
	rc := defaultRecognition()

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		FaceService: FaceServiceConfig{
			URL:     envString("FACE_SERVICE_URL", constants.DefaultFaceServiceURL),
			Timeout: time.Duration(envInt("FACE_SERVICE_TIMEOUT_SEC", int(constants.DefaultFaceServiceTimeout/time.Second))) * time.Second,
		},
		Recognition: RecognitionConfig{
			Metric:         envString("RECOGNITION_METRIC", rc.Metric),
			Tolerance:      envFloat("RECOGNITION_TOLERANCE", rc.Tolerance),
			FrameScale:     envFloat("RECOGNITION_FRAME_SCALE", rc.FrameScale),
			SampleInterval: envInt("VIDEO_SAMPLE_INTERVAL", rc.SampleInterval),
			EmbeddingModel: envString("EMBEDDING_MODEL", rc.EmbeddingModel),
			CacheEmbedding: envBool("CACHE_REFERENCE_EMBEDDINGS", true),
		},
		Storage: StorageConfig{
			StudentImageDir: envString("STUDENT_IMAGE_DIR", constants.DefaultStudentImageDir),
			FFmpegPath:      envString("FFMPEG_PATH", "ffmpeg"),
			FFprobePath:     envString("FFPROBE_PATH", "ffprobe"),
		},
	}
}
