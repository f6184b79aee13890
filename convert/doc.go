// Package convert turns host values into Go numbers and back. Host values
// are whatever a host runtime hands the bridge: Go numeric kinds for the
// in-process host, driver.Value kinds (int64, float64, []byte, string) for
// SQLite.
package convert
