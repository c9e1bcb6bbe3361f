package settings

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const settingsPathEnv = "COLLABPADS_SETTINGS_PATH"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	if dir := os.Getenv(settingsPathEnv); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AutomaticEnv()
	v.SetEnvPrefix(strings.ToLower(envPrefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	applyRegistryDefaults(v)
	return v
}

// load reads jsonStr, or settings.json when jsonStr is empty. A missing settings file is not
// an error.
func load(jsonStr string) (*viper.Viper, error) {
	v := newViper()
	if jsonStr != "" {
		if err := v.ReadConfig(strings.NewReader(jsonStr)); err != nil {
			return nil, err
		}
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, err
		}
	}
	return v, nil
}

func ReadConfig(jsonStr string) (*Settings, error) {
	v, err := load(jsonStr)
	if err != nil {
		return nil, err
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Settings, error) {
	dbTypeToUse, err := ParseDBType(v.GetString(DBType))
	if err != nil {
		return nil, err
	}

	s := &Settings{
		IP:            v.GetString(IP),
		Port:          v.GetString(Port),
		LogLevel:      v.GetString(Loglevel),
		RetryInterval: v.GetInt(RetryInterval),
		EnableMetrics: v.GetBool(EnableMetrics),
		DBType:        dbTypeToUse,
		DBSettings: &DBSettings{
			Filename: v.GetString(DBSettingsFilename),
			Host:     v.GetString(DBSettingsHost),
			Port:     v.GetString(DBSettingsPort),
			Database: v.GetString(DBSettingsDatabase),
			User:     v.GetString(DBSettingsUser),
			Password: v.GetString(DBSettingsPassword),
			Charset:  v.GetString(DBSettingsCharset),
		},
		SocketIo: SocketIoSettings{
			MaxHttpBufferSize: v.GetInt64(SocketIoMaxHttpBufferSize),
			SendBufferSize:    v.GetInt(SocketIoSendBufferSize),
		},
		CommitRateLimiting: CommitRateLimiting{
			Enabled:  v.GetBool(CommitRateLimitingEnabled),
			Duration: v.GetInt(CommitRateLimitingDuration),
			Points:   v.GetInt(CommitRateLimitingPoints),
		},
		Version: GitVersion(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// InitSettings loads settings.json and the environment into Displayed.
func InitSettings(logger *zap.SugaredLogger) (*Settings, error) {
	s, err := ReadConfig("")
	if err != nil {
		logger.Errorw("Error reading settings", "error", err)
		return nil, err
	}
	Displayed = *s
	return s, nil
}
