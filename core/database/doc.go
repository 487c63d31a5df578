// Package database provides the GORM connection to the booking database.
//
// The subsystem does not own any booking tables; it only reads reservation
// hierarchy records and writes their access-code metadata columns. MySQL is
// the production driver, sqlite (including ":memory:") is used in tests.
package database
