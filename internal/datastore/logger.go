package datastore

import "github.com/tphakala/wildlife-go/internal/logger"

const componentName = "datastore"

func getLogger() logger.Logger {
	return logger.Global().Module(componentName)
}
