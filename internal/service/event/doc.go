// Package event implements event lifecycle management.
//
// The service layer contains all business logic for creating, updating,
// archiving, duplicating, and deleting events, plus participant imports. It
// depends on the repository interface defined in this package and should
// never import from api/.
//
// Repository implementations live in repository/postgres/.
package event
