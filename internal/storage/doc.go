// Package storage provides the durable mapping-store behind campaign
// records and consent approvals. Drivers: sqlite, file, memory.
package storage
