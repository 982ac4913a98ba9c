// Package models holds the GORM persistence models of the sync service.
// Each model converts to and from its domain type with ToDomain/FromDomain
// so the domain layer stays free of storage tags.
package models
