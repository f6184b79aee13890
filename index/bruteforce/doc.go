// Package bruteforce provides a reference engine that answers every query by
// scanning all elements. It is the baseline the VP-tree is checked against.
package bruteforce
