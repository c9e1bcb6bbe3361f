package settings

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

type DBSettings struct {
	Filename string `json:"filename"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	Charset  string `json:"charset"`
}

// PortNumber returns the configured port or fallback when none is set.
func (d DBSettings) PortNumber(fallback int) (int, error) {
	if d.Port == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(d.Port)
	if err != nil {
		return 0, fmt.Errorf("invalid database port %q: %w", d.Port, err)
	}
	return port, nil
}

type SocketIoSettings struct {
	MaxHttpBufferSize int64 `json:"maxHttpBufferSize" validate:"gt=0"`
	SendBufferSize    int   `json:"sendBufferSize" validate:"gt=0"`
}

type CommitRateLimiting struct {
	Enabled  bool `json:"enabled"`
	Duration int  `json:"duration" validate:"gt=0"`
	Points   int  `json:"points" validate:"gt=0"`
}

type Settings struct {
	IP                 string             `json:"ip" validate:"required,ip"`
	Port               string             `json:"port" validate:"required,numeric"`
	LogLevel           string             `json:"loglevel"`
	RetryInterval      int                `json:"retryInterval" validate:"gt=0"`
	EnableMetrics      bool               `json:"enableMetrics"`
	DBType             IDBType            `json:"dbType" validate:"required"`
	DBSettings         *DBSettings        `json:"dbSettings" validate:"required"`
	SocketIo           SocketIoSettings   `json:"socketIo"`
	CommitRateLimiting CommitRateLimiting `json:"commitRateLimiting"`
	Version            string             `json:"-"`
}

// RetryDelay is the pause between two supervisor attempts.
func (s *Settings) RetryDelay() time.Duration {
	return time.Duration(s.RetryInterval) * time.Second
}

// ListenAddress is the host:port the server binds to.
func (s *Settings) ListenAddress() string {
	return fmt.Sprintf("%s:%s", s.IP, s.Port)
}

func (s *Settings) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(s)
}

var Displayed Settings
