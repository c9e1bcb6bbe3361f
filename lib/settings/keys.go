package settings

// Configuration keys as they appear in settings.json.
const (
	IP            = "ip"
	Port          = "port"
	Loglevel      = "loglevel"
	RetryInterval = "retryInterval"
	EnableMetrics = "enableMetrics"

	DBType             = "dbType"
	DBSettingsFilename = "dbSettings.filename"
	DBSettingsHost     = "dbSettings.host"
	DBSettingsPort     = "dbSettings.port"
	DBSettingsDatabase = "dbSettings.database"
	DBSettingsUser     = "dbSettings.user"
	DBSettingsPassword = "dbSettings.password"
	DBSettingsCharset  = "dbSettings.charset"

	SocketIoMaxHttpBufferSize = "socketIo.maxHttpBufferSize"
	SocketIoSendBufferSize    = "socketIo.sendBufferSize"

	CommitRateLimitingEnabled  = "commitRateLimiting.enabled"
	CommitRateLimitingDuration = "commitRateLimiting.duration"
	CommitRateLimitingPoints   = "commitRateLimiting.points"
)
