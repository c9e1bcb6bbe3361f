package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ether/collabpads-go/lib/db/migrations"
	mysql2 "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

type MySQLOptions struct {
	Username string
	Password string
	Port     int
	Host     string
	Database string
}

// mySQLConfig builds the driver configuration. ClientFoundRows makes RowsAffected count
// matched rows like the other dialects do.
func mySQLConfig(options MySQLOptions) *mysql2.Config {
	mySQLConf := mysql2.NewConfig()
	mySQLConf.User = options.Username
	mySQLConf.Passwd = options.Password
	mySQLConf.Net = "tcp"
	mySQLConf.Addr = fmt.Sprintf("%s:%d", options.Host, options.Port)
	mySQLConf.DBName = options.Database
	mySQLConf.ParseTime = true
	mySQLConf.Loc = time.UTC
	mySQLConf.ClientFoundRows = true
	return mySQLConf
}

func NewMySQLDB(options MySQLOptions, logger *zap.SugaredLogger) (*SQLDataStore, error) {
	sqlDb, err := sql.Open("mysql", mySQLConfig(options).FormatDSN())
	if err != nil {
		return nil, err
	}

	sqlDb.SetMaxOpenConns(25)
	sqlDb.SetMaxIdleConns(5)

	migrationManager := migrations.NewMigrationManager(sqlDb, migrations.DialectMySQL, logger)
	if err := migrationManager.Run(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return newSQLDataStore(sqlDb, migrations.DialectMySQL), nil
}
