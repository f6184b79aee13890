// Package vpadmin exposes bridge administration as a SQLite virtual table:
// listing live tree sessions, the dispatcher commands, and closing every
// session at once.
package vpadmin
