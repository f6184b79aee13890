// Package vpclient provides a typed Go client over the vptree SQL function
// registered by package sqlhost, so callers holding only a *sql.DB can build
// and query trees without writing dispatcher SQL.
package vpclient
