// Package commands implements deskctl, the operator CLI for DeliveryDesk.
//
// Every command talks to the same PostgreSQL and Redis the API server uses,
// so mutations made here land in the audit trail like any other write.
package commands
