// Package util holds small string helpers shared by the client, its
// optimizer and the command line tool.
package util
