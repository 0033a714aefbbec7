package main

import (
	"bitbucket.org/harborfuel/erp_backend/config"
	"bitbucket.org/harborfuel/erp_backend/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
}
