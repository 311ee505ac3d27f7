// Package common holds the configuration and logging setup shared by the
// dShop library packages and the command-line interface.
//
// Logging is done through named loggers from the dragonboat logger package
// (logger.GetLogger("store"), logger.GetLogger("order"), ...). InitLoggers
// installs a factory with a compact "LEVEL | package | message" format and
// applies the configured level to every dShop logger.
package common
