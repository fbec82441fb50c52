package internal

import "time"

type Config struct {
	Host              string        `env:"HOST"`
	Port              int           `env:"PORT,required=true"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	UploadDir         string        `env:"UPLOAD_DIR,required=true"`
	TempDir           string        `env:"TEMP_DIR,required=true"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,required=true"`
	StaleThreshold    time.Duration `env:"STALE_THRESHOLD,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
	MaxChunkBytes     int64         `env:"MAX_CHUNK_BYTES,required=true"`
}
